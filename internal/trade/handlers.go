package trade

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/margindesk/admin-api/internal/admin"
	"github.com/margindesk/admin-api/internal/types"
	"github.com/margindesk/admin-api/pkg/middleware"
	"github.com/margindesk/admin-api/pkg/response"
)

// GinHandlers contains HTTP handlers for trade endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=win lose"`
}

// DecisionHandler records an admin's win/lose decision on a pending trade.
// Authorization failures come back as 403 with a message distinguishing
// "not an admin" from "not your user"; state conflicts as 400.
func (h *GinHandlers) DecisionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tradeID := c.Param("trade_id")
		adminID := middleware.GetAdminID(c)

		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body: decision must be win or lose")
			return
		}

		trade, err := h.service.SetDecision(tradeID, req.Decision, adminID)
		switch {
		case errors.Is(err, admin.ErrNotAdmin):
			response.Forbidden(c, "Access denied: not an active admin")
		case errors.Is(err, admin.ErrNotAssigned):
			response.Forbidden(c, "Access denied: user is not assigned to you")
		case errors.Is(err, ErrNotPending):
			response.BadRequest(c, "Trade not updated. It may no longer be pending.")
		case err != nil:
			response.InternalError(c, err.Error())
		default:
			response.Success(c, types.DecisionResponse{
				ID:        trade.TradeID,
				Status:    trade.Status,
				Decision:  trade.Decision,
				ExecuteAt: trade.ExecuteAt,
			})
		}
	}
}

// ListPendingHandler returns the pending trades visible to the acting admin.
func (h *GinHandlers) ListPendingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID := middleware.GetAdminID(c)

		trades, err := h.service.VisiblePendingTrades(adminID)
		if errors.Is(err, admin.ErrNotAdmin) {
			response.Forbidden(c, "Access denied: not an active admin")
			return
		}
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		out := make([]types.TradeResponse, 0, len(trades))
		for i := range trades {
			out = append(out, types.ToTradeResponse(&trades[i]))
		}
		response.Success(c, out)
	}
}

// GetTradeHandler returns a single trade if it is inside the admin's scope.
func (h *GinHandlers) GetTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tradeID := c.Param("trade_id")
		adminID := middleware.GetAdminID(c)

		trade, err := h.service.GetVisibleTrade(tradeID, adminID)
		switch {
		case errors.Is(err, admin.ErrNotAdmin):
			response.Forbidden(c, "Access denied: not an active admin")
		case errors.Is(err, admin.ErrNotAssigned):
			response.Forbidden(c, "Access denied: user is not assigned to you")
		case err != nil:
			response.Handle(c, nil, err)
		default:
			resp := types.ToTradeResponse(trade)
			response.Success(c, resp)
		}
	}
}
