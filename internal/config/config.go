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
	App      AppConfig
	Database DatabaseConfig
	Search   SearchConfig
	Ai       AIConfig
	Chatbot  ChatbotConfig
	Archive  ArchiveConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
}

type DatabaseConfig struct {
	Connection string
}

type SearchConfig struct {
	URL   string
	Index string
}

type AIConfig struct {
	LLMProvider       string // "ollama" or "openai"
	LLMModel          string // e.g. "llama3", "gpt-4o-mini"
	OllamaBaseURL     string
	OpenAIAPIKey      string
	EmbeddingProvider string // "local" or "ollama"
	EmbeddingBaseURL  string
	EmbeddingModel    string
}

type ChatbotConfig struct {
	QueryBackend        string // "sql" or "elasticsearch"
	AllowedTables       []string
	SimilarityThreshold float64
	MaxExamples         int
	ChunkDelay          time.Duration
	EmbedExampleTopic   string
}

type ArchiveConfig struct {
	ObjectStorePath string
	DownloadsDir    string
	DownloadsURL    string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Search: SearchConfig{
			URL:   getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Index: getEnv("ELASTICSEARCH_INDEX", "client_case"),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "local"),
			EmbeddingBaseURL:  getEnv("EMBEDDING_BASE_URL", "http://127.0.0.1:5000"),
			EmbeddingModel:    getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		},
		Chatbot: ChatbotConfig{
			QueryBackend:        getEnv("CHATBOT_QUERY_BACKEND", "elasticsearch"),
			AllowedTables:       getEnvAsSlice("ALLOWED_TABLES", []string{"client_cases", "reports", "reviews"}),
			SimilarityThreshold: getEnvAsFloat("RAG_SIMILARITY_THRESHOLD", 0.65),
			MaxExamples:         getEnvAsInt("RAG_MAX_EXAMPLES", 3),
			ChunkDelay:          time.Duration(getEnvAsInt("STREAMING_CHUNK_DELAY_MICROSECONDS", 50000)) * time.Microsecond,
			EmbedExampleTopic:   getEnv("EMBED_RAG_EXAMPLE_TOPIC_NAME", "EMBED_RAG_EXAMPLE"),
		},
		Archive: ArchiveConfig{
			ObjectStorePath: getEnv("OBJECT_STORE_PATH", "./data/objects"),
			DownloadsDir:    getEnv("DOWNLOADS_DIR", "./public/downloads"),
			DownloadsURL:    getEnv("DOWNLOADS_URL", "/downloads"),
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

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsSlice(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}

	parts := strings.Split(strValue, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
