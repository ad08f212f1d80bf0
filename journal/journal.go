// Package journal persists analyzed meals per user in a SQL database.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"mealvoice"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var ErrUnsupportedDriver = errors.New("unsupported journal driver")

// Record is a saved meal.
type Record struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	mealvoice.NormalizedMeal
	CreatedAt time.Time `json:"createdAt"`
}

// Query filters List. Zero From or To leaves that side open.
type Query struct {
	From  time.Time
	To    time.Time
	Limit int
}

type Store struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

// Open connects to driver ("sqlite" or "postgres") and creates the schema if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var s Store
	switch driver {
	case "sqlite", "":
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// SQLite serializes writers.
		db.SetMaxOpenConns(1)
		s.db = db
	case "postgres", "pgx":
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(time.Hour)
		s.db = db
		s.postgres = true
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	s.now = time.Now

	if err := s.db.PingContext(ctx); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := s.initSchema(ctx); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("JOURNAL: Database ready", "driver", driver)
	return &s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{`
		CREATE TABLE IF NOT EXISTS meals (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			description TEXT NOT NULL,
			meal_type TEXT NOT NULL,
			food_items TEXT NOT NULL,
			calories DOUBLE PRECISION NOT NULL,
			protein DOUBLE PRECISION NOT NULL,
			carbs DOUBLE PRECISION NOT NULL,
			fat DOUBLE PRECISION NOT NULL,
			is_fallback BOOLEAN NOT NULL,
			processing_error TEXT,
			eaten_at BIGINT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_meals_user_eaten ON meals(user_id, eaten_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Save stores meal for userID. A zero meal timestamp is replaced by the save time.
func (s *Store) Save(ctx context.Context, userID string, meal mealvoice.NormalizedMeal) (Record, error) {
	if strings.TrimSpace(userID) == "" {
		return Record{}, fmt.Errorf("%w: user id is required", mealvoice.ErrValidation)
	}
	if strings.TrimSpace(meal.Description) == "" {
		return Record{}, fmt.Errorf("%w: description is required", mealvoice.ErrValidation)
	}
	for name, v := range map[string]float64{
		"calories": meal.Calories,
		"protein":  meal.Protein,
		"carbs":    meal.Carbs,
		"fat":      meal.Fat,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Record{}, fmt.Errorf("%w: %s must be a non-negative number", mealvoice.ErrValidation, name)
		}
	}

	now := s.now().UTC()
	if meal.Timestamp.IsZero() {
		meal.Timestamp = now
	}
	if meal.FoodItems == nil {
		meal.FoodItems = []string{}
	}
	// Stored meals do not keep the raw model output.
	meal.RawAnalysis = nil

	foods, err := json.Marshal(meal.FoodItems)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:             uuid.New().String(),
		UserID:         userID,
		NormalizedMeal: meal,
		CreatedAt:      now,
	}

	query := s.rebind(`
		INSERT INTO meals (id, user_id, description, meal_type, food_items, calories, protein, carbs, fat,
			is_fallback, processing_error, eaten_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, meal.Description, meal.MealType, string(foods),
		meal.Calories, meal.Protein, meal.Carbs, meal.Fat,
		meal.IsFallbackData, meal.ProcessingError,
		meal.Timestamp.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return Record{}, fmt.Errorf("failed to insert meal: %w", err)
	}

	rec.Timestamp = time.UnixMilli(meal.Timestamp.UnixMilli()).UTC()
	rec.CreatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return rec, nil
}

// List returns userID's meals eaten within q, newest first.
func (s *Store) List(ctx context.Context, userID string, q Query) ([]Record, error) {
	query := `
		SELECT id, user_id, description, meal_type, food_items, calories, protein, carbs, fat,
			is_fallback, processing_error, eaten_at, created_at
		FROM meals
		WHERE user_id = ?
	`
	args := []any{userID}

	if !q.From.IsZero() {
		query += " AND eaten_at >= ?"
		args = append(args, q.From.UnixMilli())
	}
	if !q.To.IsZero() {
		query += " AND eaten_at < ?"
		args = append(args, q.To.UnixMilli())
	}

	query += " ORDER BY eaten_at DESC, created_at DESC LIMIT ?"
	args = append(args, clampLimit(q.Limit))

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			rec       Record
			foods     string
			procErr   sql.NullString
			eatenAt   int64
			createdAt int64
		)
		err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Description, &rec.MealType, &foods,
			&rec.Calories, &rec.Protein, &rec.Carbs, &rec.Fat,
			&rec.IsFallbackData, &procErr, &eatenAt, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}

		if err := json.Unmarshal([]byte(foods), &rec.FoodItems); err != nil {
			return nil, fmt.Errorf("failed to decode food items for meal %s: %w", rec.ID, err)
		}
		if procErr.Valid {
			msg := procErr.String
			rec.ProcessingError = &msg
		}
		rec.Timestamp = time.UnixMilli(eatenAt).UTC()
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()

		records = append(records, rec)
	}
	return records, rows.Err()
}

// Day lists every meal userID ate on the calendar day containing t, in t's location.
func (s *Store) Day(ctx context.Context, userID string, t time.Time) ([]Record, error) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return s.List(ctx, userID, Query{From: start, To: start.AddDate(0, 0, 1), Limit: MaxLimit})
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
