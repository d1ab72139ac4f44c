package earnings

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"creator-ledger/pkg/db/pagination"
	"creator-ledger/pkg/httpapi"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/middleware"
	"creator-ledger/pkg/task"
	"creator-ledger/pkg/taskname"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Handler struct {
	service  *Service
	enqueuer task.Enqueuer
}

type HandlerParams struct {
	fx.In
	Service  *Service
	Enqueuer task.Enqueuer `optional:"true"`
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{service: p.Service, enqueuer: p.Enqueuer}
}

func (h *Handler) RegisterRoutes(r httpapi.Routes) {
	r.Creator.GET("/balance", h.GetBalance)
	r.Creator.GET("/earnings", h.ListEarnings)

	r.Internal.POST("/views", h.RecordViews)

	r.Admin.POST("/creators/:creator_id/bonuses", h.CreateBonus)
}

func (h *Handler) GetBalance(c *gin.Context) {
	summary, err := h.service.GetBalance(c.Request.Context(), middleware.CreatorID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type listEarningsQuery struct {
	pagination.Pagination
	Unpaid bool `form:"unpaid"`
}

func (h *Handler) ListEarnings(c *gin.Context) {
	var q listEarningsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	recs, page, err := h.service.ListEarnings(c.Request.Context(), ListEarningsParams{
		CreatorID:  middleware.CreatorID(c),
		UnpaidOnly: q.Unpaid,
		Pagination: q.Pagination,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": recs, "page_info": page})
}

// RecordViews queues the event for the worker, accruing inline when the
// queue is unavailable. It always answers 202.
func (h *Handler) RecordViews(c *gin.Context) {
	var e ViewEvent
	if err := c.ShouldBindJSON(&e); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	ctx := c.Request.Context()
	err := task.Offload(ctx, h.enqueuer, taskname.EarningsView, func() (*asynq.Task, error) { return NewViewTask(e) })
	if err == nil {
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
		return
	}
	if !errors.Is(err, task.ErrNoEnqueuer) {
		logger.Ctx(ctx).Warn("view event not queued, accruing inline", zap.Error(err))
	}

	h.service.OnContentViewed(ctx, e)
	c.JSON(http.StatusAccepted, gin.H{"queued": false})
}

type createBonusRequest struct {
	Multiplier string    `json:"multiplier" binding:"required"`
	Reason     string    `json:"reason"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at" binding:"required"`
}

func (h *Handler) CreateBonus(c *gin.Context) {
	var req createBonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	multiplier, err := decimal.NewFromString(strings.TrimSpace(req.Multiplier))
	if err != nil {
		middleware.Abort(c, ErrInvalidMultiplier)
		return
	}

	bonus, err := h.service.CreateBonus(c.Request.Context(), CreateBonusParams{
		AdminID:    middleware.AdminID(c),
		CreatorID:  c.Param("creator_id"),
		Multiplier: multiplier,
		Reason:     req.Reason,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, bonus)
}
