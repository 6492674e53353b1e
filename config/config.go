package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBPath     string `envconfig:"DB_PATH" default:"paper.db"`
	UploadDir  string `envconfig:"UPLOAD_DIR" default:"uploaded"`
	ResolveDir string `envconfig:"RESOLVE_DIR" default:"resolved"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Externer Layout-Analyse-Dienst für PDFs
	PDFServiceURL  string `envconfig:"PDF_SERVICE_URL" required:"true"`
	RequestTimeout int    `envconfig:"REQUEST_TIMEOUT" default:"120"`

	// LLM-Endpunkt (OpenAI-kompatible Chat-Completions-API)
	LLMBaseURL    string `envconfig:"LLM_BASE_URL" default:"https://api.openai.com/v1"`
	LLMAPIKey     string `envconfig:"LLM_API_KEY" required:"true"`
	LLMModel      string `envconfig:"LLM_MODEL" default:"gpt-4o-2024-08-06"`
	FieldSpecPath string `envconfig:"FIELD_SPEC_PATH" default:"fields.yaml"`

	// Seitenauswahl und Ablehnungsschwelle der Extraktion
	MaxPageNumber   int    `envconfig:"MAX_PAGE_NUMBER" default:"2"`
	TargetPages     []int  `envconfig:"TARGET_PAGES"`
	AllowedTypes    string `envconfig:"ALLOWED_TYPES"`
	NoTextThreshold int    `envconfig:"NO_TEXT_THRESHOLD" default:"5"`

	// Heimat-Affiliation für den Batch-Abgleich
	HomeAffiliation string `envconfig:"HOME_AFFILIATION" default:"chonnam national"`
	AdminID         string `envconfig:"ADMIN_ID" default:"AD00000"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
