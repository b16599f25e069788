package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port      int              `json:"port"`
	LogConfig logger.LogConfig `json:"log_config"`
	Database  DatabaseConfig   `json:"database"`
	Queue     QueueConfig      `json:"queue"`
	AI        AIConfig         `json:"ai"`
	FileStore FileStoreConfig  `json:"file_store"`
	Chunking  ChunkingConfig   `json:"chunking"`
	Grading   GradingConfig    `json:"grading"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type QueueConfig struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	Prefetch int    `json:"prefetch"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	Model          string      `json:"model"`
	EmbedModel     string      `json:"embed_model"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	Data           interface{} `json:"data"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ChunkingConfig struct {
	Size    int `json:"size"`
	Overlap int `json:"overlap"`
}

type GradingConfig struct {
	TopK                 int `json:"top_k"`
	Workers              int `json:"workers"`
	MaxPromptChars       int `json:"max_prompt_chars"`
	MaxContractAttempts  int `json:"max_contract_attempts"`
	MaxTransportAttempts int `json:"max_transport_attempts"`
	BackoffMillis        int `json:"backoff_millis"`
	LeaseSeconds         int `json:"lease_seconds"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Queue.Type == "" {
		cfg.Queue.Type = "memory"
	}
	switch cfg.Queue.Type {
	case "memory":
	case "rabbitmq":
		if cfg.Queue.URL == "" {
			return nil, fmt.Errorf("queue.url is required for rabbitmq")
		}
	default:
		return nil, fmt.Errorf("queue.type must be memory or rabbitmq")
	}
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = "grading"
	}
	if cfg.Queue.Prefetch <= 0 {
		cfg.Queue.Prefetch = 1
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.Chunking.Size <= 0 {
		cfg.Chunking.Size = 500
	}
	if cfg.Chunking.Overlap == 0 && cfg.Chunking.Size > 50 {
		cfg.Chunking.Overlap = 50
	}
	if cfg.Chunking.Overlap < 0 || cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return nil, fmt.Errorf("chunking.overlap must be in [0, chunking.size)")
	}
	if cfg.Grading.TopK <= 0 {
		cfg.Grading.TopK = 5
	}
	if cfg.Grading.Workers <= 0 {
		cfg.Grading.Workers = 2
	}
	if cfg.Grading.MaxPromptChars <= 0 {
		cfg.Grading.MaxPromptChars = 24000
	}
	if cfg.Grading.MaxContractAttempts <= 0 {
		cfg.Grading.MaxContractAttempts = 3
	}
	if cfg.Grading.MaxTransportAttempts <= 0 {
		cfg.Grading.MaxTransportAttempts = 3
	}
	if cfg.Grading.BackoffMillis <= 0 {
		cfg.Grading.BackoffMillis = 500
	}
	if cfg.Grading.LeaseSeconds <= 0 {
		cfg.Grading.LeaseSeconds = 300
	}
	return &cfg, nil
}
