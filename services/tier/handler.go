package tier

import (
	"net/http"

	"creator-ledger/pkg/httpapi"
	"creator-ledger/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r httpapi.Routes) {
	r.Creator.GET("/tier", h.GetTier)
	r.Creator.POST("/tier/upgrade-requests", h.RequestUpgrade)

	r.Admin.GET("/tiers/pending", h.ListPending)
	r.Admin.POST("/tiers/:creator_id/approve", h.Approve)
	r.Admin.POST("/tiers/:creator_id/deny", h.Deny)
}

func (h *Handler) GetTier(c *gin.Context) {
	e, err := h.service.RecomputeEligibility(c.Request.Context(), middleware.CreatorID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) RequestUpgrade(c *gin.Context) {
	t, err := h.service.RequestUpgrade(c.Request.Context(), middleware.CreatorID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusAccepted, t)
}

func (h *Handler) ListPending(c *gin.Context) {
	tiers, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tiers})
}

type approveRequest struct {
	TierLevel Level `json:"tier_level" binding:"required"`
}

func (h *Handler) Approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	t, err := h.service.Approve(c.Request.Context(), middleware.AdminID(c), c.Param("creator_id"), req.TierLevel)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) Deny(c *gin.Context) {
	t, err := h.service.Deny(c.Request.Context(), middleware.AdminID(c), c.Param("creator_id"))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
