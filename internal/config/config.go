package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Remote     RemoteConfig
	Simulation SimulationConfig
	Storage    StorageConfig
	Events     EventsConfig
	Backend    BackendConfig
	Tracing    TracingConfig
}

type AppConfig struct {
	Environment      string
	LogFilePath      string
	FrameLogFilePath string
}

type RemoteConfig struct {
	BaseURL        string // ws://host:port
	ClientID       string // empty means a fresh uuid per process
	ReconnectDelay time.Duration
	PingPeriod     time.Duration
	DialTimeout    time.Duration
	Simulate       bool // drive the pipeline locally instead of through the service
}

type SimulationConfig struct {
	DiscoveryStep time.Duration
	FactoryStep   time.Duration
	PhaseStep     time.Duration
	DownloadTick  time.Duration
	UploadTick    time.Duration
	JitterSeed    int64
	Jitter        bool
}

type StorageConfig struct {
	Credentials   string // "memory" or "redis"
	RedisURL      string
	CredentialTTL time.Duration
}

type EventsConfig struct {
	Enabled bool
	NatsURL string
}

type BackendConfig struct {
	Port               string
	CorsAllowedOrigins string
	AnswerDelay        time.Duration // per question in the LLM test battery
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Environment:      getEnv("GO_ENV", "development"),
			LogFilePath:      getEnv("LOG_FILE_PATH", "logs/console.log"),
			FrameLogFilePath: getEnv("FRAME_LOG_FILE_PATH", "logs/frames.log"),
		},
		Remote: RemoteConfig{
			BaseURL:        getEnv("REMOTE_BASE_URL", "ws://localhost:8000"),
			ClientID:       getEnv("REMOTE_CLIENT_ID", ""),
			ReconnectDelay: getEnvAsDuration("REMOTE_RECONNECT_DELAY", 3*time.Second),
			PingPeriod:     getEnvAsDuration("REMOTE_PING_PERIOD", 30*time.Second),
			DialTimeout:    getEnvAsDuration("REMOTE_DIAL_TIMEOUT", 10*time.Second),
			Simulate:       getEnvAsBool("REMOTE_SIMULATE", false),
		},
		Simulation: SimulationConfig{
			DiscoveryStep: getEnvAsDuration("SIM_DISCOVERY_STEP", time.Second),
			FactoryStep:   getEnvAsDuration("SIM_FACTORY_STEP", 2500*time.Millisecond),
			PhaseStep:     getEnvAsDuration("SIM_PHASE_STEP", 2*time.Second),
			DownloadTick:  getEnvAsDuration("SIM_DOWNLOAD_TICK", 200*time.Millisecond),
			UploadTick:    getEnvAsDuration("SIM_UPLOAD_TICK", 500*time.Millisecond),
			JitterSeed:    int64(getEnvAsInt("SIM_JITTER_SEED", 0)),
			Jitter:        getEnvAsBool("SIM_JITTER", false),
		},
		Storage: StorageConfig{
			Credentials:   strings.ToLower(getEnv("STORAGE_CREDENTIALS", "memory")),
			RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			CredentialTTL: getEnvAsDuration("CREDENTIAL_TTL", 0),
		},
		Events: EventsConfig{
			Enabled: getEnvAsBool("EVENTS_ENABLED", false),
			NatsURL: getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Backend: BackendConfig{
			Port:               getEnv("BACKEND_PORT", "8000"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173, http://localhost:3000"),
			AnswerDelay:        getEnvAsDuration("BACKEND_ANSWER_DELAY", 1500*time.Millisecond),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "rag-pipeline-console"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("1.5s") and bare milliseconds ("1500").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if ms, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
