package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/FrknKoseoglu/phintech-core/internal/service"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
	"github.com/FrknKoseoglu/phintech-core/internal/validation"
)

type createOrderRequest struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Quantity    string `json:"quantity"`
	Amount      string `json:"amount"`
	TargetPrice string `json:"target_price"`
}

type orderItem struct {
	OrderID       string  `json:"order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      *string `json:"quantity,omitempty"`
	Amount        *string `json:"amount,omitempty"`
	TargetPrice   string  `json:"target_price"`
	Status        string  `json:"status"`
	FailureReason string  `json:"failure_reason,omitempty"`
	CurrentPrice  *string `json:"current_price,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

type listOrdersResponse struct {
	Orders []orderItem `json:"orders"`
}

func toOrderItem(order storage.LimitOrder, currentPrice *decimal.Decimal) orderItem {
	item := orderItem{
		OrderID:       order.ID.String(),
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		TargetPrice:   order.TargetPrice.String(),
		Status:        string(order.Status),
		FailureReason: order.FailureReason,
		CreatedAt:     order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     order.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if order.Size.ByNotional() {
		amount := order.Size.Notional().String()
		item.Amount = &amount
	} else {
		quantity := order.Size.Quantity().String()
		item.Quantity = &quantity
	}
	if currentPrice != nil {
		price := currentPrice.String()
		item.CurrentPrice = &price
	}
	return item
}

func (h *Handler) CreateOrder(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload", nil)
		return
	}

	if errs := validation.ValidateOrderRequest(req.Symbol, req.Side, req.Quantity, req.Amount, req.TargetPrice); len(errs) > 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request", errs)
		return
	}

	side, _ := storage.ParseSide(strings.ToUpper(strings.TrimSpace(req.Side)))
	target, _ := decimal.NewFromString(strings.TrimSpace(req.TargetPrice))

	var size storage.OrderSize
	if strings.TrimSpace(req.Quantity) != "" {
		quantity, _ := decimal.NewFromString(strings.TrimSpace(req.Quantity))
		size = storage.SizeByQuantity(quantity)
	} else {
		amount, _ := decimal.NewFromString(strings.TrimSpace(req.Amount))
		size = storage.SizeByNotional(amount)
	}

	order, err := h.Orders.SubmitOrder(c.Request.Context(), service.SubmitOrderInput{
		UserID:      userID,
		Symbol:      validation.NormalizeSymbol(req.Symbol),
		Side:        side,
		Size:        size,
		TargetPrice: target,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderItem(*order, nil))
}

func (h *Handler) ListOrders(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}

	var filter storage.OrderFilter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		filter.Status = storage.OrderStatus(strings.ToUpper(raw))
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer", nil)
			return
		}
		filter.Limit = limit
	}

	views, err := h.Orders.ListOrders(c.Request.Context(), userID, filter)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	resp := listOrdersResponse{Orders: make([]orderItem, 0, len(views))}
	for _, view := range views {
		resp.Orders = append(resp.Orders, toOrderItem(view.Order, view.CurrentPrice))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetOrder(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}

	orderID, err := parseUUIDParam(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid order id", nil)
		return
	}

	order, err := h.Orders.GetOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderItem(*order, nil))
}

func (h *Handler) CancelOrder(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user", nil)
		return
	}

	orderID, err := parseUUIDParam(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid order id", nil)
		return
	}

	if err := h.Orders.CancelOrder(c.Request.Context(), userID, orderID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID.String(), "status": string(storage.StatusCancelled)})
}
