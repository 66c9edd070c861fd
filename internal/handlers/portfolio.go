package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FrknKoseoglu/phintech-core/internal/service"
	"github.com/FrknKoseoglu/phintech-core/internal/valuation"
)

type holdingItem struct {
	Symbol       string  `json:"symbol"`
	Quantity     string  `json:"quantity"`
	AvgCost      string  `json:"avg_cost"`
	CurrentPrice *string `json:"current_price,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	ValueUSD     *string `json:"value_usd,omitempty"`
}

type portfolioResponse struct {
	NetWorth   valuation.NetWorth   `json:"net_worth"`
	ProfitLoss valuation.ProfitLoss `json:"profit_loss"`
	Holdings   []holdingItem        `json:"holdings"`
	RateTRYUSD string               `json:"rate_try_usd"`
}

func toHoldingItem(h service.HoldingView) holdingItem {
	item := holdingItem{
		Symbol:   h.Symbol,
		Quantity: h.Quantity.String(),
		AvgCost:  h.AvgCost.String(),
		Currency: h.Currency,
	}
	if h.CurrentPrice != nil {
		price := h.CurrentPrice.String()
		item.CurrentPrice = &price
	}
	if h.ValueUSD != nil {
		value := h.ValueUSD.String()
		item.ValueUSD = &value
	}
	return item
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}

	view, err := h.Portfolio.Portfolio(c.Request.Context(), userID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	resp := portfolioResponse{
		NetWorth:   view.NetWorth,
		ProfitLoss: view.ProfitLoss,
		Holdings:   make([]holdingItem, 0, len(view.Holdings)),
		RateTRYUSD: view.RateTRYUSD.String(),
	}
	for _, holding := range view.Holdings {
		resp.Holdings = append(resp.Holdings, toHoldingItem(holding))
	}
	c.JSON(http.StatusOK, resp)
}
