package settlement

import (
	"github.com/gin-gonic/gin"
	"github.com/margindesk/admin-api/pkg/response"
)

// GinHandlers contains HTTP handlers for settlement observability endpoints
type GinHandlers struct {
	db *Database
}

func NewGinHandlers(db *Database) *GinHandlers {
	return &GinHandlers{db: db}
}

// ListDiscrepanciesHandler lists flagged payouts awaiting reconciliation.
func (h *GinHandlers) ListDiscrepanciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		discs, err := h.db.GetOpenDiscrepancies()
		response.Handle(c, discs, err)
	}
}
