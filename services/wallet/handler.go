package wallet

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
	r.Creator.GET("/wallet", h.GetWallet)
	r.Creator.PUT("/wallet", middleware.TrackActivity(h.activity, "wallet.update"), h.SetWallet)
	r.Creator.GET("/wallet/history", h.History)
}

func (h *Handler) GetWallet(c *gin.Context) {
	w, err := h.service.GetWallet(c.Request.Context(), middleware.CreatorID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

type setWalletRequest struct {
	CryptoType string `json:"crypto_type" binding:"required"`
	Address    string `json:"address" binding:"required"`
}

func (h *Handler) SetWallet(c *gin.Context) {
	var req setWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, middleware.BindError(err))
		return
	}

	w, err := h.service.SetWallet(c.Request.Context(), middleware.CreatorID(c), req.CryptoType, req.Address)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) History(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), middleware.CreatorID(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": history})
}
