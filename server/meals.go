package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"mealvoice"
	"mealvoice/journal"
	"mealvoice/nutrition"

	"github.com/gin-gonic/gin"
)

func (h *handlers) createMeal(c *gin.Context) {
	var meal mealvoice.NormalizedMeal
	if err := c.ShouldBindJSON(&meal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meal"})
		return
	}

	rec, err := h.cfg.Journal.Save(c.Request.Context(), c.GetString(userIDKey), meal)
	if errors.Is(err, mealvoice.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		slog.Error("SERVER: Failed to save meal", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save meal"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": rec.ID})
}

func (h *handlers) listMeals(c *gin.Context) {
	var q journal.Query
	var err error

	if v := c.Query("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil || q.Limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}
	if q.From, err = parseTime(c.Query("from")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	if q.To, err = parseTime(c.Query("to")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}

	records, err := h.cfg.Journal.List(c.Request.Context(), c.GetString(userIDKey), q)
	if err != nil {
		slog.Error("SERVER: Failed to list meals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list meals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"meals": records})
}

func (h *handlers) summary(c *gin.Context) {
	day := h.cfg.Now().UTC()
	if v := c.Query("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, use YYYY-MM-DD"})
			return
		}
		day = d
	}

	records, err := h.cfg.Journal.Day(c.Request.Context(), c.GetString(userIDKey), day)
	if err != nil {
		slog.Error("SERVER: Failed to load meals for summary", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load meals"})
		return
	}

	meals := make([]mealvoice.NormalizedMeal, 0, len(records))
	for _, r := range records {
		meals = append(meals, r.NormalizedMeal)
	}

	c.JSON(http.StatusOK, gin.H{
		"date":    day.Format(time.DateOnly),
		"summary": nutrition.Summarize(meals, h.cfg.Goals),
	})
}

// parseTime accepts RFC 3339 timestamps or bare dates. Empty means unset.
func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
