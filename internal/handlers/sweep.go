package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	libauth "github.com/FrknKoseoglu/phintech-core/libs/auth"

	"github.com/FrknKoseoglu/phintech-core/internal/engine"
)

// TriggerSweep runs one order sweep on demand. It is an operator
// endpoint guarded by a pre-shared bearer secret, not a user JWT; with
// no secret configured it refuses everything.
func (h *Handler) TriggerSweep(c *gin.Context) {
	if h.SweepSecret == "" {
		writeError(c, http.StatusServiceUnavailable, "SWEEP_DISABLED", "sweep trigger is not configured", nil)
		return
	}

	token := libauth.ExtractBearer(c.GetHeader("Authorization"))
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.SweepSecret)) != 1 {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid sweep credentials", nil)
		return
	}

	summary, err := h.Sweeper.Sweep(c.Request.Context())
	if err != nil {
		if errors.Is(err, engine.ErrSweepInProgress) {
			writeError(c, http.StatusConflict, "SWEEP_IN_PROGRESS", "a sweep is already running", nil)
			return
		}
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
