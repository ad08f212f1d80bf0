// Package server exposes meal analysis and the meal journal over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mealvoice"
	"mealvoice/journal"
	"mealvoice/nutrition"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Processor turns a validated transcript into a meal. It never fails.
type Processor interface {
	Process(ctx context.Context, transcript string) mealvoice.NormalizedMeal
}

type Journal interface {
	Save(ctx context.Context, userID string, meal mealvoice.NormalizedMeal) (journal.Record, error)
	List(ctx context.Context, userID string, q journal.Query) ([]journal.Record, error)
	Day(ctx context.Context, userID string, t time.Time) ([]journal.Record, error)
}

type Config struct {
	// Processor is nil when the analysis backend could not be built; BackendErr says why.
	Processor  Processor
	BackendErr error
	Usage      *mealvoice.UsageTracker
	// Journal routes are only mounted when Journal is set.
	Journal   Journal
	JWTSecret string
	Goals     nutrition.Goals
	Tracer    trace.Tracer
	Now       func() time.Time
}

type handlers struct {
	cfg Config
}

func New(cfg Config) *gin.Engine {
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(mealvoice.TracerNameServer)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Goals == (nutrition.Goals{}) {
		cfg.Goals = nutrition.DefaultGoals()
	}
	h := &handlers{cfg: cfg}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), tracing(cfg.Tracer))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		MaxAge:          12 * time.Hour,
	}))

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/analyze-meal", h.analyzeMeal)
		api.OPTIONS("/analyze-meal", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		api.GET("/usage", h.usage)
	}

	if cfg.Journal != nil {
		meals := api.Group("/meals")
		meals.Use(RequireAuth([]byte(cfg.JWTSecret)))
		{
			meals.POST("", h.createMeal)
			meals.GET("", h.listMeals)
			meals.GET("/summary", h.summary)
		}
	}

	return r
}

func (h *handlers) usage(c *gin.Context) {
	if h.cfg.Usage == nil {
		c.JSON(http.StatusOK, mealvoice.UsageSnapshot{Day: h.cfg.Now().UTC().Format(time.DateOnly)})
		return
	}
	h.cfg.Usage.ResetIfNewDay()
	c.JSON(http.StatusOK, h.cfg.Usage.Snapshot())
}

// tracing opens a server span around every request.
func tracing(tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), fmt.Sprintf("%s %s", c.Request.Method, c.FullPath()),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", c.FullPath()),
			))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
