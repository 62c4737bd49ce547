package types

import "time"

// DecisionResponse is returned to the admin console after a decision is
// recorded. ExecuteAt tells the operator when the trade will settle.
type DecisionResponse struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Decision  string     `json:"decision"`
	ExecuteAt *time.Time `json:"execute_at,omitempty"`
}

// TradeResponse is the read-surface shape for a single trade.
type TradeResponse struct {
	TradeID          string     `json:"trade_id"`
	UserID           string     `json:"user_id"`
	Symbol           string     `json:"symbol"`
	Direction        string     `json:"direction"`
	StakeAmount      string     `json:"stake_amount"`
	Leverage         int        `json:"leverage"`
	ProfitRate       string     `json:"profit_rate"`
	Status           string     `json:"status"`
	Decision         string     `json:"decision"`
	ExecuteAt        *time.Time `json:"execute_at,omitempty"`
	Result           string     `json:"result,omitempty"`
	ProfitLossAmount string     `json:"profit_loss_amount,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// ToTradeResponse maps a Trade row to its API shape. Decimal fields go out
// as strings so the console never loses precision to float parsing.
func ToTradeResponse(t *Trade) TradeResponse {
	resp := TradeResponse{
		TradeID:     t.TradeID,
		UserID:      t.UserID,
		Symbol:      t.Symbol,
		Direction:   t.Direction,
		StakeAmount: t.StakeAmount.String(),
		Leverage:    t.Leverage,
		ProfitRate:  t.ProfitRate.String(),
		Status:      t.Status,
		Decision:    t.Decision,
		ExecuteAt:   t.ExecuteAt,
		Result:      t.Result,
		CompletedAt: t.CompletedAt,
	}
	if t.CompletedAt != nil {
		resp.ProfitLossAmount = t.ProfitLossAmount.String()
	}
	return resp
}
