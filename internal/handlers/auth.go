package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	libauth "github.com/FrknKoseoglu/phintech-core/libs/auth"

	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userItem `json:"user"`
}

type userItem struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
}

func toUserItem(u *storage.User) userItem {
	return userItem{
		ID:        u.ID.String(),
		Email:     u.Email,
		Balance:   u.Balance.String(),
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload", nil)
		return
	}

	user, err := h.Accounts.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	token, err := libauth.NewAccessToken(user.ID.String(), user.Email, h.JWTSecret, h.TokenTTL, time.Now())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse{Token: token, User: toUserItem(user)})
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid payload", nil)
		return
	}

	user, err := h.Accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	token, err := libauth.NewAccessToken(user.ID.String(), user.Email, h.JWTSecret, h.TokenTTL, time.Now())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Token: token, User: toUserItem(user)})
}
