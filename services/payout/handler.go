package payout

import (
	"net/http"
	"strings"

	"creator-ledger/pkg/db/pagination"
	"creator-ledger/pkg/httpapi"
	"creator-ledger/pkg/middleware"
	"creator-ledger/pkg/money"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type Handler struct {
	service  *Service
	activity middleware.ActivityRecorder
}

type HandlerParams struct {
	fx.In
	Service  *Service
	Activity middleware.ActivityRecorder `optional:"true"`
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{service: p.Service, activity: p.Activity}
}

func (h *Handler) RegisterRoutes(r httpapi.Routes) {
	r.Creator.POST("/withdrawals", middleware.TrackActivity(h.activity, "withdrawal.submit"), h.Submit)
	r.Creator.GET("/withdrawals", h.History)

	r.Admin.GET("/payouts", h.List)
	r.Admin.GET("/payouts/:id", h.Get)
	r.Admin.POST("/payouts/:id/actions", h.Action)
	r.Admin.GET("/creators/:creator_id/payout-settings", h.GetSetting)
	r.Admin.PUT("/creators/:creator_id/payout-settings", h.UpdateSetting)
}

type submitRequest struct {
	AmountUSD     string `json:"amount_usd" binding:"required"`
	CryptoType    string `json:"crypto_type" binding:"required"`
	WalletAddress string `json:"wallet_address" binding:"required"`
	Pin           string `json:"pin" binding:"required"`
}

func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}
	amount, err := money.Parse(req.AmountUSD)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	out, err := h.service.Submit(c.Request.Context(), SubmitParams{
		CreatorID:     middleware.CreatorID(c),
		Amount:        amount,
		CryptoType:    req.CryptoType,
		WalletAddress: req.WalletAddress,
		Pin:           req.Pin,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) History(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	reqs, info, err := h.service.History(c.Request.Context(), middleware.CreatorID(c), page)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reqs, "page_info": info})
}

type listQuery struct {
	pagination.Pagination
	Status    string `form:"status"`
	CreatorID string `form:"creator_id"`
}

func (h *Handler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	reqs, info, err := h.service.List(c.Request.Context(), ListParams{
		CreatorID:  q.CreatorID,
		Status:     Status(strings.ToLower(strings.TrimSpace(q.Status))),
		Pagination: q.Pagination,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reqs, "page_info": info})
}

func (h *Handler) Get(c *gin.Context) {
	req, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type actionRequest struct {
	Action          string `json:"action" binding:"required"`
	Note            string `json:"note"`
	TransactionHash string `json:"transaction_hash"`
	Reason          string `json:"reason"`
}

func (h *Handler) Action(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	cmd, err := ParseCommand(req.Action, c.Param("id"), middleware.AdminID(c), req.Note, req.TransactionHash, req.Reason)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	out, err := h.service.Apply(c.Request.Context(), cmd)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetSetting(c *gin.Context) {
	st, err := h.service.GetSetting(c.Request.Context(), c.Param("creator_id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type updateSettingRequest struct {
	WithdrawalsEnabled *bool   `json:"withdrawals_enabled"`
	PauseReason        string  `json:"pause_reason"`
	MonthlyLimitUSD    *string `json:"monthly_limit_usd"`
}

// UpdateSetting treats an empty monthly_limit_usd as a reset to the default.
func (h *Handler) UpdateSetting(c *gin.Context) {
	var req updateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	p := UpdateSettingParams{
		AdminID:            middleware.AdminID(c),
		CreatorID:          c.Param("creator_id"),
		WithdrawalsEnabled: req.WithdrawalsEnabled,
		PauseReason:        req.PauseReason,
	}
	if req.MonthlyLimitUSD != nil {
		if strings.TrimSpace(*req.MonthlyLimitUSD) == "" {
			p.ClearLimit = true
		} else {
			limit, err := money.Parse(*req.MonthlyLimitUSD)
			if err != nil {
				middleware.Abort(c, err)
				return
			}
			p.MonthlyLimit = &limit
		}
	}

	st, err := h.service.UpdateSetting(c.Request.Context(), p)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
