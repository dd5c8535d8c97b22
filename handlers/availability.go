package handlers

import (
	"net/http"
	"strconv"
	"time"

	"rivelya/middleware"
	"rivelya/models"
	"rivelya/services/availability"
	"rivelya/utils"

	"github.com/gin-gonic/gin"
)

type AvailabilityHandler struct {
	Service *availability.Service
}

// MonthHandler returns the per-day availability of an expert for ?year=&month=.
func (h *AvailabilityHandler) MonthHandler(c *gin.Context) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())
	if raw := c.Query("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(c, utils.Validation("invalid_month", "year must be a number"))
			return
		}
		year = v
	}
	if raw := c.Query("month"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(c, utils.Validation("invalid_month", "month must be a number"))
			return
		}
		month = v
	}

	days, err := h.Service.Month(c.Request.Context(), c.Param("expertId"), year, time.Month(month))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expertId": c.Param("expertId"), "year": year, "month": month, "days": days})
}

// CheckHandler answers whether ?date=&start=&end= can be booked. An unavailable range is a
// normal answer, not an error.
func (h *AvailabilityHandler) CheckHandler(c *gin.Context) {
	err := h.Service.Check(c.Request.Context(), c.Param("expertId"), c.Query("date"), c.Query("start"), c.Query("end"), "")
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"available": true})
		return
	}
	if appErr, ok := utils.AsAppError(err); ok && appErr.Kind == utils.KindConflict {
		c.JSON(http.StatusOK, gin.H{"available": false, "code": appErr.Code, "message": appErr.Message})
		return
	}
	utils.RespondError(c, err)
}

type workingHoursInput struct {
	Timezone  string                   `json:"timezone"`
	Intervals []models.WorkingInterval `json:"intervals"`
}

func (h *AvailabilityHandler) SaveWorkingHoursHandler(c *gin.Context) {
	var in workingHoursInput
	if !bindJSON(c, &in) {
		return
	}
	saved, err := h.Service.SaveWorkingHours(c.Request.Context(), c.GetString(middleware.CtxExpertID), in.Timezone, in.Intervals)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

type blocksInput struct {
	Year    int                 `json:"year" binding:"required"`
	Month   int                 `json:"month" binding:"required,min=1,max=12"`
	Entries []models.BlockEntry `json:"entries"`
}

func (h *AvailabilityHandler) SaveBlocksHandler(c *gin.Context) {
	var in blocksInput
	if !bindJSON(c, &in) {
		return
	}
	saved, err := h.Service.SaveBlocks(c.Request.Context(), c.GetString(middleware.CtxExpertID), in.Year, time.Month(in.Month), in.Entries)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
