// Package handlers exposes the HTTP API. Handlers translate between
// JSON and the service layer; all business rules live below.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	libauth "github.com/FrknKoseoglu/phintech-core/libs/auth"

	"github.com/FrknKoseoglu/phintech-core/internal/engine"
	"github.com/FrknKoseoglu/phintech-core/internal/service"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
	"github.com/FrknKoseoglu/phintech-core/internal/validation"
)

type AccountService interface {
	Register(ctx context.Context, email, password string) (*storage.User, error)
	Login(ctx context.Context, email, password string) (*storage.User, error)
}

type OrderService interface {
	SubmitOrder(ctx context.Context, in service.SubmitOrderInput) (*storage.LimitOrder, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) error
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*storage.LimitOrder, error)
	ListOrders(ctx context.Context, userID uuid.UUID, filter storage.OrderFilter) ([]service.OrderView, error)
}

type WalletService interface {
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*storage.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]storage.Transaction, error)
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]storage.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID uuid.UUID) error
}

type MarketService interface {
	Trade(ctx context.Context, userID uuid.UUID, symbol string, side storage.OrderSide, quantity decimal.Decimal) (*storage.Transaction, error)
}

type PortfolioService interface {
	Portfolio(ctx context.Context, userID uuid.UUID) (*service.PortfolioView, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (*engine.Summary, error)
}

type Handler struct {
	Accounts  AccountService
	Orders    OrderService
	Wallet    WalletService
	Market    MarketService
	Portfolio PortfolioService
	Sweeper   Sweeper
	Logger    *slog.Logger

	JWTSecret []byte
	TokenTTL  time.Duration
	// SweepSecret guards POST /internal/sweep. Empty disables the
	// endpoint entirely.
	SweepSecret string
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.POST("/auth/register", h.RegisterUser)
	api.POST("/auth/login", h.Login)

	authed := api.Group("/", libauth.Middleware(h.JWTSecret))
	authed.POST("/orders", h.CreateOrder)
	authed.GET("/orders", h.ListOrders)
	authed.GET("/orders/:id", h.GetOrder)
	authed.DELETE("/orders/:id", h.CancelOrder)
	authed.POST("/trades", h.Trade)
	authed.POST("/wallet/deposit", h.DepositFunds)
	authed.GET("/wallet/transactions", h.ListTransactions)
	authed.GET("/notifications", h.ListNotifications)
	authed.POST("/notifications/read", h.MarkNotificationsRead)
	authed.GET("/portfolio", h.GetPortfolio)

	r.POST("/internal/sweep", h.TriggerSweep)
}

type errorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func writeError(c *gin.Context, status int, code, message string, fields []validation.FieldError) {
	c.JSON(status, errorResponse{Code: code, Message: message, Fields: fields})
}

// writeServiceError maps domain sentinels onto HTTP statuses; anything
// unmapped is a 500 with no internals leaked.
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrEmailTaken):
		writeError(c, http.StatusConflict, "EMAIL_TAKEN", "email is already registered", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
	case errors.Is(err, service.ErrUnknownAsset):
		writeError(c, http.StatusBadRequest, "UNKNOWN_ASSET", "no quote available for symbol", nil)
	case errors.Is(err, storage.ErrOrderNotFound), errors.Is(err, storage.ErrUserNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
	case errors.Is(err, storage.ErrNotOrderOwner):
		writeError(c, http.StatusForbidden, "FORBIDDEN", "order belongs to another user", nil)
	case errors.Is(err, storage.ErrOrderNotPending):
		writeError(c, http.StatusConflict, "ORDER_NOT_PENDING", "order is no longer pending", nil)
	case errors.Is(err, storage.ErrInsufficientFunds):
		writeError(c, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "insufficient funds", nil)
	case errors.Is(err, storage.ErrInsufficientHoldings):
		writeError(c, http.StatusUnprocessableEntity, "INSUFFICIENT_HOLDINGS", "insufficient holdings", nil)
	default:
		h.Logger.Error("request failed", "error", err)
		writeError(c, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	return libauth.UserIDFromContext(c)
}

func parseUUIDParam(value string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.Nil, errors.New("missing id")
	}
	return uuid.Parse(trimmed)
}
