package handlers

import (
	"net/http"

	"rivelya/services/chat"
	"rivelya/utils"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	Service *chat.Service
}

func (h *ChatHandler) GetThreadHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.GetThread(c.Request.Context(), userID, c.Param("id"))
	})
}

func (h *ChatHandler) ListMessagesHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	msgs, err := h.Service.ListMessages(c.Request.Context(), userID, c.Param("id"), queryLimit(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type messageInput struct {
	Body string `json:"body" binding:"required"`
}

func (h *ChatHandler) PostMessageHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in messageInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.Service.PostMessage(c.Request.Context(), userID, c.Param("id"), in.Body)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *ChatHandler) InitiateCallHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	call, err := h.Service.InitiateCall(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, call)
}

func (h *ChatHandler) GetCallHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.GetCall(c.Request.Context(), userID, c.Param("id"))
	})
}

func (h *ChatHandler) AcceptCallHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.AcceptCall(c.Request.Context(), userID, c.Param("id"))
	})
}

func (h *ChatHandler) RejectCallHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.RejectCall(c.Request.Context(), userID, c.Param("id"))
	})
}

func (h *ChatHandler) EndCallHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.EndCall(c.Request.Context(), userID, c.Param("id"))
	})
}

func (h *ChatHandler) SignalHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var sig chat.Signal
	if !bindJSON(c, &sig) {
		return
	}
	if err := h.Service.RelaySignal(c.Request.Context(), userID, c.Param("id"), sig); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
