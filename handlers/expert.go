package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"rivelya/database/repository"
	expertRepo "rivelya/database/repository/expert"
	"rivelya/middleware"
	"rivelya/models"
	"rivelya/utils"

	"github.com/gin-gonic/gin"
)

type ExpertHandler struct {
	Experts         expertRepo.ExpertRepository
	DefaultCurrency string
}

type profileInput struct {
	DisplayName         string `json:"displayName" binding:"required"`
	PricePerMinuteCents int64  `json:"pricePerMinuteCents" binding:"min=0"`
	Currency            string `json:"currency"`
	Timezone            string `json:"timezone"`
}

// UpsertProfileHandler creates or updates the bookable profile behind the caller's
// expert id.
func (h *ExpertHandler) UpsertProfileHandler(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in profileInput
	if !bindJSON(c, &in) {
		return
	}
	if in.Timezone != "" {
		if _, err := time.LoadLocation(in.Timezone); err != nil {
			utils.RespondError(c, utils.Validation("invalid_timezone", "unknown timezone "+in.Timezone))
			return
		}
	}
	currency := strings.ToLower(in.Currency)
	if currency == "" {
		currency = h.DefaultCurrency
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()
	expert := &models.Expert{
		ID:                  c.GetString(middleware.CtxExpertID),
		UserID:              userID,
		DisplayName:         in.DisplayName,
		PricePerMinuteCents: in.PricePerMinuteCents,
		Currency:            currency,
		Timezone:            in.Timezone,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	existing, err := h.Experts.GetByID(ctx, expert.ID)
	switch {
	case err == nil:
		if existing.UserID != userID {
			utils.RespondError(c, utils.Forbidden("not_owner", "this expert profile belongs to another user"))
			return
		}
		expert.CreatedAt = existing.CreatedAt
	case !errors.Is(err, repository.ErrNotFound):
		utils.RespondError(c, err)
		return
	}
	if err := h.Experts.Upsert(ctx, expert); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expert)
}

func (h *ExpertHandler) GetProfileHandler(c *gin.Context) {
	expert, err := h.Experts.GetByID(c.Request.Context(), c.Param("expertId"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = utils.NotFound("expert_not_found", "expert not found")
		}
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, expert)
}
