package fraud

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/httpapi"
	"creator-ledger/pkg/middleware"
	"creator-ledger/pkg/money"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type Handler struct {
	service *Service
	auditor *Auditor
}

type HandlerParams struct {
	fx.In
	Service *Service
	Auditor *Auditor
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{service: p.Service, auditor: p.Auditor}
}

func (h *Handler) RegisterRoutes(r httpapi.Routes) {
	r.Admin.GET("/fraud-flags", h.ListFlags)
	r.Admin.POST("/fraud-flags", h.CreateFlag)
	r.Admin.GET("/fraud-flags/:id", h.GetFlag)
	r.Admin.PATCH("/fraud-flags/:id", h.UpdateFlag)
	r.Admin.POST("/fraud-flags/:id/evidence", h.AttachEvidence)

	r.Admin.GET("/chargebacks", h.ListChargebacks)
	r.Admin.POST("/chargebacks", h.FileChargeback)

	r.Admin.GET("/ip-logs", h.ListIPLogs)
}

type listFlagsQuery struct {
	Status    string `form:"status"`
	CreatorID string `form:"creator_id"`
	Limit     int    `form:"limit,default=50"`
}

func (h *Handler) ListFlags(c *gin.Context) {
	var q listFlagsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}
	flags, err := h.service.ListFraudFlags(c.Request.Context(), ListFlagsParams{
		CreatorID: q.CreatorID,
		Status:    FlagStatus(strings.ToLower(q.Status)),
		Limit:     q.Limit,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": flags})
}

type createFlagRequest struct {
	CreatorID   string     `json:"creator_id" binding:"required"`
	FlagType    string     `json:"flag_type" binding:"required"`
	Severity    string     `json:"severity"`
	Description string     `json:"description"`
	Evidence    []Evidence `json:"evidence"`
}

func (h *Handler) CreateFlag(c *gin.Context) {
	var req createFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}
	flag, err := h.service.CreateFraudFlag(c.Request.Context(), CreateFlagParams{
		AdminID:     middleware.AdminID(c),
		CreatorID:   req.CreatorID,
		FlagType:    req.FlagType,
		Severity:    Severity(strings.ToLower(req.Severity)),
		Description: req.Description,
		Evidence:    req.Evidence,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, flag)
}

func (h *Handler) GetFlag(c *gin.Context) {
	flag, err := h.service.GetFraudFlag(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, flag)
}

type updateFlagRequest struct {
	Status      string `json:"status"`
	ActionTaken string `json:"action_taken"`
}

func (h *Handler) UpdateFlag(c *gin.Context) {
	var req updateFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}
	flag, err := h.service.UpdateFraudFlag(c.Request.Context(), UpdateFlagParams{
		AdminID:     middleware.AdminID(c),
		FlagID:      c.Param("id"),
		Status:      FlagStatus(strings.ToLower(req.Status)),
		ActionTaken: req.ActionTaken,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, flag)
}

// AttachEvidence takes a multipart upload in the "file" field.
func (h *Handler) AttachEvidence(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		middleware.Abort(c, ErrEvidenceRequired.With(errutil.WithErr(err)))
		return
	}
	f, err := fh.Open()
	if err != nil {
		middleware.Abort(c, ErrEvidenceRequired.With(errutil.WithErr(err)))
		return
	}
	defer f.Close()

	flag, err := h.service.AttachEvidence(c.Request.Context(), EvidenceUpload{
		AdminID:     middleware.AdminID(c),
		FlagID:      c.Param("id"),
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, flag)
}

type fileChargebackRequest struct {
	CreatorID       string `json:"creator_id" binding:"required"`
	PayoutRequestID string `json:"payout_request_id" binding:"required"`
	AmountUSD       string `json:"amount_usd" binding:"required"`
	Reason          string `json:"reason" binding:"required"`
}

func (h *Handler) FileChargeback(c *gin.Context) {
	var req fileChargebackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}
	amount, err := money.Parse(req.AmountUSD)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	cb, err := h.service.FileChargeback(c.Request.Context(), ChargebackParams{
		AdminID:         middleware.AdminID(c),
		CreatorID:       req.CreatorID,
		PayoutRequestID: req.PayoutRequestID,
		Amount:          amount,
		Reason:          req.Reason,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, cb)
}

type listChargebacksQuery struct {
	CreatorID       string `form:"creator_id"`
	PayoutRequestID string `form:"payout_request_id"`
	Limit           int    `form:"limit,default=50"`
}

func (h *Handler) ListChargebacks(c *gin.Context) {
	var q listChargebacksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}
	cbs, err := h.service.ListChargebacks(c.Request.Context(), ListChargebacksParams{
		CreatorID:       q.CreatorID,
		PayoutRequestID: q.PayoutRequestID,
		Limit:           q.Limit,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cbs})
}

type listIPLogsQuery struct {
	CreatorID  string `form:"creator_id"`
	Since      string `form:"since"`
	Suspicious string `form:"suspicious"`
	Limit      int    `form:"limit,default=100"`
}

func (h *Handler) ListIPLogs(c *gin.Context) {
	var q listIPLogsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	p := ListIPLogsParams{CreatorID: q.CreatorID, Limit: q.Limit}
	if q.Since != "" {
		since, err := time.Parse(time.RFC3339, q.Since)
		if err != nil {
			middleware.Abort(c, middleware.BindError(err))
			return
		}
		p.Since = since
	}
	if q.Suspicious != "" {
		v, err := strconv.ParseBool(q.Suspicious)
		if err != nil {
			middleware.Abort(c, middleware.BindError(err))
			return
		}
		p.SuspiciousOnly = v
	}

	logs, err := h.auditor.ListIPLogs(c.Request.Context(), p)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
