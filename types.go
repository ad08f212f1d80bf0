package mealvoice

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// Analyzer turns a transcript into a structured meal analysis using a remote model.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (MealAnalysisResult, error)
}

type MealTime string

const (
	MealTimeBreakfast MealTime = "breakfast"
	MealTimeLunch     MealTime = "lunch"
	MealTimeDinner    MealTime = "dinner"
	MealTimeSnack     MealTime = "snack"
	MealTimeDessert   MealTime = "dessert"
)

// MealTypeUnknown is reported for fallback meals, where no meal time could be determined.
const MealTypeUnknown = "unknown"

var mealTimes = []MealTime{MealTimeBreakfast, MealTimeLunch, MealTimeDinner, MealTimeSnack, MealTimeDessert}

// ParseMealTime matches s case-insensitively against the closed set of meal times.
func ParseMealTime(s string) (MealTime, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, mt := range mealTimes {
		if string(mt) == s {
			return mt, true
		}
	}
	return "", false
}

// MealTimeAt guesses the meal time from the hour of t.
func MealTimeAt(t time.Time) MealTime {
	switch h := t.Hour(); {
	case h >= 4 && h < 11:
		return MealTimeBreakfast
	case h >= 11 && h < 16:
		return MealTimeLunch
	case h >= 16 && h < 22:
		return MealTimeDinner
	default:
		return MealTimeSnack
	}
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence normalizes s, treating anything unrecognized as low confidence.
func ParseConfidence(s string) Confidence {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case ConfidenceHigh, ConfidenceMedium:
		return c
	default:
		return ConfidenceLow
	}
}

// FoodItem is one food the model identified in a transcript.
type FoodItem struct {
	Name            string     `json:"name"`
	EstimatedAmount *string    `json:"estimatedAmount,omitempty"`
	Protein         float64    `json:"protein"`
	Calories        float64    `json:"calories"`
	Carbs           float64    `json:"carbs"`
	Fat             float64    `json:"fat"`
	Confidence      Confidence `json:"confidence"`
}

// MealAnalysisResult is the validated, normalized output of a remote analysis.
// Totals are reported by the model and are not re-derived from the items.
type MealAnalysisResult struct {
	MealTime         MealTime   `json:"mealTime"`
	MealTimeInferred bool       `json:"mealTimeInferred,omitempty"`
	FoodItems        []FoodItem `json:"foodItems"`
	TotalProtein     float64    `json:"totalProtein"`
	TotalCalories    float64    `json:"totalCalories"`
	TotalCarbs       float64    `json:"totalCarbs"`
	TotalFat         float64    `json:"totalFat"`
}

// NormalizedMeal is the record handed to callers and persisted in the journal.
type NormalizedMeal struct {
	Description     string              `json:"description"`
	MealType        string              `json:"mealType"`
	FoodItems       []string            `json:"foodItems"`
	Calories        float64             `json:"calories"`
	Protein         float64             `json:"protein"`
	Carbs           float64             `json:"carbs"`
	Fat             float64             `json:"fat"`
	Timestamp       time.Time           `json:"timestamp"`
	RawAnalysis     *MealAnalysisResult `json:"rawAnalysis,omitempty"`
	ProcessingError *string             `json:"processingError"`
	IsFallbackData  bool                `json:"isFallbackData"`
}

// AnalyzeResponse is the wire shape returned by the analyze endpoint and the Lambda handler.
type AnalyzeResponse struct {
	NormalizedMeal
	Error        bool   `json:"error"`
	ErrorDetails string `json:"errorDetails,omitempty"`
}

func NewAnalyzeResponse(meal NormalizedMeal) AnalyzeResponse {
	resp := AnalyzeResponse{NormalizedMeal: meal, Error: meal.IsFallbackData}
	if meal.ProcessingError != nil {
		resp.ErrorDetails = *meal.ProcessingError
	}
	return resp
}
