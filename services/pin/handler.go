package pin

import (
	"net/http"

	"creator-ledger/pkg/httpapi"
	"creator-ledger/pkg/middleware"

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
	r.Creator.GET("/pin", h.Status)
	r.Creator.POST("/pin", middleware.TrackActivity(h.activity, "pin.create"), h.Create)
	r.Creator.PUT("/pin", middleware.TrackActivity(h.activity, "pin.change"), h.Change)
}

func (h *Handler) Status(c *gin.Context) {
	st, err := h.service.Status(c.Request.Context(), middleware.CreatorID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type createRequest struct {
	Pin string `json:"pin" binding:"required"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	st, err := h.service.CreateOrChange(c.Request.Context(), middleware.CreatorID(c), req.Pin, "")
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

type changeRequest struct {
	OldPin string `json:"old_pin" binding:"required"`
	NewPin string `json:"new_pin" binding:"required"`
}

func (h *Handler) Change(c *gin.Context) {
	var req changeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	st, err := h.service.CreateOrChange(c.Request.Context(), middleware.CreatorID(c), req.NewPin, req.OldPin)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
