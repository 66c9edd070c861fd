package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

type depositRequest struct {
	Amount string `json:"amount"`
}

type transactionItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Symbol    string `json:"symbol,omitempty"`
	Quantity  string `json:"quantity"`
	Price     string `json:"price"`
	Total     string `json:"total"`
	CreatedAt string `json:"created_at"`
}

func toTransactionItem(tx storage.Transaction) transactionItem {
	return transactionItem{
		ID:        tx.ID.String(),
		Type:      string(tx.Type),
		Symbol:    tx.Symbol,
		Quantity:  tx.Quantity.String(),
		Price:     tx.Price.String(),
		Total:     tx.Total.String(),
		CreatedAt: tx.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) DepositFunds(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload", nil)
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "amount must be a positive decimal", nil)
		return
	}

	tx, err := h.Wallet.Deposit(c.Request.Context(), userID, amount)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTransactionItem(*tx))
}

func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	txs, err := h.Wallet.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	items := make([]transactionItem, 0, len(txs))
	for _, tx := range txs {
		items = append(items, toTransactionItem(tx))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": items})
}

type notificationItem struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

func (h *Handler) ListNotifications(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}

	unreadOnly := strings.EqualFold(c.Query("unread"), "true")
	notifications, err := h.Wallet.ListNotifications(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	items := make([]notificationItem, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, notificationItem{
			ID:        n.ID.String(),
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h *Handler) MarkNotificationsRead(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}

	if err := h.Wallet.MarkNotificationsRead(c.Request.Context(), userID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
