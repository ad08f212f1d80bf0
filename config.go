package mealvoice

import "time"

// ModelConfig selects and tunes the hosted model used for meal analysis.
type ModelConfig struct {
	Provider       string        `env:"MODEL_PROVIDER,default=openai"`
	ModelID        string        `env:"MODEL_ID"`
	MaxTokens      int32         `env:"MAX_TOKENS,default=800"`
	Temperature    float32       `env:"TEMPERATURE,default=0.3"`
	TopP           float32       `env:"TOP_P,default=0.9"`
	RequestTimeout time.Duration `env:"MODEL_REQUEST_TIMEOUT,default=30s"`
	MaxAttempts    int           `env:"MODEL_MAX_ATTEMPTS,default=3"`
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL,default=https://api.openai.com/v1"`
	GeminiAPIKey   string        `env:"GEMINI_API_KEY"`
}

type PipelineConfig struct {
	AnalysisTimeout   time.Duration `env:"ANALYSIS_TIMEOUT,default=15s"`
	DailyRequestLimit int           `env:"DAILY_REQUEST_LIMIT,default=0"`
	AnalysisLog       string        `env:"ANALYSIS_LOG,default=none"`
	LookupTablePath   string        `env:"LOOKUP_TABLE_PATH"`
	LookupTableBucket string        `env:"LOOKUP_TABLE_S3_BUCKET"`
	LookupTableKey    string        `env:"LOOKUP_TABLE_S3_KEY"`
	AlertWebhookURL   string        `env:"ALERT_WEBHOOK_URL"`
	AlertChannel      string        `env:"ALERT_CHANNEL,default=#meal-alerts"`
}

type ServerConfig struct {
	Addr      string `env:"ADDR,default=:8080"`
	JWTSecret string `env:"JWT_SECRET"`
	DBDriver  string `env:"DB_DRIVER,default=sqlite"`
	DBDSN     string `env:"DB_DSN,default=meals.db"`
}

// GoalsConfig holds the daily nutrition targets used by journal summaries.
type GoalsConfig struct {
	Calories float64 `env:"GOAL_CALORIES,default=2000"`
	Protein  float64 `env:"GOAL_PROTEIN,default=100"`
	Carbs    float64 `env:"GOAL_CARBS,default=250"`
	Fat      float64 `env:"GOAL_FAT,default=70"`
}
