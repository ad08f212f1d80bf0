package server

import (
	"log/slog"
	"net/http"

	"mealvoice"
	"mealvoice/orchestrator"

	"github.com/gin-gonic/gin"
)

type analyzeRequest struct {
	Transcript *string `json:"transcript"`
}

func (h *handlers) analyzeMeal(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Transcript == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No transcript provided"})
		return
	}

	transcript, err := orchestrator.ValidateTranscript(*req.Transcript)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No transcript provided"})
		return
	}

	if h.cfg.Processor == nil {
		slog.Error("SERVER: Meal analysis backend unavailable", "error", h.cfg.BackendErr)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Meal analysis service is not configured"})
		return
	}

	meal := h.cfg.Processor.Process(c.Request.Context(), transcript)
	c.JSON(http.StatusOK, mealvoice.NewAnalyzeResponse(meal))
}
