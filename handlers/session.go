package handlers

import (
	"net/http"

	"rivelya/services/session"
	"rivelya/utils"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	Service *session.Service
}

// CreateInstantHandler opens an unbooked session with an expert.
func (h *SessionHandler) CreateInstantHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in session.InstantInput
	if !bindJSON(c, &in) {
		return
	}
	sess, err := h.Service.CreateInstant(c.Request.Context(), userID, in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *SessionHandler) GetHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.Get(c.Request.Context(), userID, c.Param("id"))
	})
}

func (h *SessionHandler) StartHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.Start(c.Request.Context(), userID, c.Param("id"))
	})
}

func (h *SessionHandler) EndHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.End(c.Request.Context(), userID, c.Param("id"))
	})
}

func (h *SessionHandler) EarningsHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	earnings, err := h.Service.ListEarnings(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"earnings": earnings})
}
