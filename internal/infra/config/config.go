package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	PingMessage string `envconfig:"PING_MESSAGE" default:"ping"`

	HTTP struct {
		RequestTimeout  time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"180s"`
		ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"30s"`
		WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"200s"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
		MaxUploadBytes  int64         `envconfig:"HTTP_MAX_UPLOAD_BYTES" default:"26214400"`
	} `envconfig:""`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	// AuthSecret подписывает пользовательские токены. Пустое значение включает dev-режим с X-User-ID.
	AuthSecret string `envconfig:"AUTH_SECRET"`

	AI struct {
		Provider string `envconfig:"AI_PROVIDER" default:"gemini"`
	} `envconfig:""`

	Gemini struct {
		APIKey  string        `envconfig:"GEMINI_API_KEY"`
		Model   string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
		Timeout time.Duration `envconfig:"GEMINI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Bhashini struct {
		AuthToken   string        `envconfig:"BHASHINI_AUTH_TOKEN"`
		APIURL      string        `envconfig:"BHASHINI_API_URL" default:"https://dhruva-api.bhashini.gov.in/services/inference/pipeline"`
		MTServiceID string        `envconfig:"BHASHINI_MT_SERVICE_ID" default:"ai4bharat/indictrans-v2-all-gpu--t4"`
		Timeout     time.Duration `envconfig:"BHASHINI_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Pipeline struct {
		WorkRoot string        `envconfig:"PIPELINE_WORK_ROOT" default:"/tmp/sarthi-pipeline"`
		Timeout  time.Duration `envconfig:"PIPELINE_TIMEOUT" default:"0s"`
	} `envconfig:""`

	Speech struct {
		Dir             string   `envconfig:"SPEECH_DIR" default:"final_s2s"`
		Script          string   `envconfig:"SPEECH_SCRIPT" default:"run_wrapper.py"`
		Interpreters    []string `envconfig:"SPEECH_INTERPRETERS" default:"python3,python"`
		RequiredModules []string `envconfig:"SPEECH_REQUIRED_MODULES" default:"requests,pydub"`
		DefaultTarget   string   `envconfig:"SPEECH_DEFAULT_TARGET" default:"en"`
		ForceLocalASR   bool     `envconfig:"FORCE_LOCAL_ASR" default:"false"`
		// LegacySidecar: фиксированный путь, куда старый wrapper пишет результат.
		LegacySidecar string `envconfig:"SPEECH_LEGACY_SIDECAR"`
	} `envconfig:""`

	OCR struct {
		Dir             string   `envconfig:"OCR_DIR" default:"python_services"`
		Script          string   `envconfig:"OCR_SCRIPT" default:"ocr_service.py"`
		Interpreters    []string `envconfig:"OCR_INTERPRETERS" default:"python3,python"`
		RequiredModules []string `envconfig:"OCR_REQUIRED_MODULES" default:"requests"`
		DefaultTarget   string   `envconfig:"OCR_DEFAULT_TARGET" default:"English"`
	} `envconfig:""`

	Tasks struct {
		CacheTTL time.Duration `envconfig:"TASKS_CACHE_TTL" default:"6h"`
	} `envconfig:""`

	Sessions struct {
		ImageTTL time.Duration `envconfig:"IMAGE_SESSION_TTL" default:"30m"`
	} `envconfig:""`

	Queue struct {
		Driver    string `envconfig:"EVENTS_QUEUE_DRIVER" default:"redis"`
		Key       string `envconfig:"EVENTS_QUEUE_KEY" default:"sarthi_progress_events"`
		RabbitURL string `envconfig:"RABBITMQ_URL"`
	} `envconfig:""`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
