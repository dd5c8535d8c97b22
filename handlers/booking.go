package handlers

import (
	"net/http"

	"rivelya/services/booking"
	"rivelya/utils"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	Service *booking.Service
}

func (h *BookingHandler) CreateHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in booking.CreateInput
	if !bindJSON(c, &in) {
		return
	}
	b, err := h.Service.Create(c.Request.Context(), userID, in)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) ListHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.Service.List(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list})
}

func (h *BookingHandler) GetHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	details, err := h.Service.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// DecisionHandler lets the expert accept or reject a pending request.
func (h *BookingHandler) DecisionHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in decisionInput
	if !bindJSON(c, &in) {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.Decide(c.Request.Context(), userID, c.Param("id"), *in.Accept)
	})
}

func (h *BookingHandler) RescheduleHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in booking.Proposal
	if !bindJSON(c, &in) {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.RequestReschedule(c.Request.Context(), userID, c.Param("id"), in)
	})
}

func (h *BookingHandler) RespondRescheduleHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in decisionInput
	if !bindJSON(c, &in) {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.RespondReschedule(c.Request.Context(), userID, c.Param("id"), *in.Accept)
	})
}

func (h *BookingHandler) StartNowHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.RequestStartNow(c.Request.Context(), userID, c.Param("id"))
	})
}

func (h *BookingHandler) RespondStartNowHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in decisionInput
	if !bindJSON(c, &in) {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.RespondStartNow(c.Request.Context(), userID, c.Param("id"), *in.Accept)
	})
}

func (h *BookingHandler) StartHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.Start(c.Request.Context(), userID, c.Param("id"))
	})
}

type cancelInput struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) CancelHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in cancelInput
	if c.Request.ContentLength > 0 && !bindJSON(c, &in) {
		return
	}
	respond(c, func() (any, error) {
		return h.Service.Cancel(c.Request.Context(), userID, c.Param("id"), in.Reason)
	})
}

// respond writes the result of a state change, or its classified error.
func respond(c *gin.Context, fn func() (any, error)) {
	out, err := fn()
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
