package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/storage"
	"github.com/FrknKoseoglu/phintech-core/internal/validation"
)

type tradeRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity string `json:"quantity"`
}

func (h *Handler) Trade(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload", nil)
		return
	}

	if errs := validation.ValidateTradeRequest(req.Symbol, req.Side, req.Quantity); len(errs) > 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request", errs)
		return
	}

	side, _ := storage.ParseSide(strings.ToUpper(strings.TrimSpace(req.Side)))
	quantity, _ := decimal.NewFromString(strings.TrimSpace(req.Quantity))

	tx, err := h.Market.Trade(c.Request.Context(), userID, validation.NormalizeSymbol(req.Symbol), side, quantity)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTransactionItem(*tx))
}
