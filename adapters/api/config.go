package api

import (
	"time"
)

// ServerConfig holds HTTP settings for the inference server
type ServerConfig struct {
	Addr            string        `json:"addr"`
	GinMode         string        `json:"gin_mode"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxBodyBytes    int64         `json:"max_body_bytes"`
	MaxBatchSize    int           `json:"max_batch_size"`
}

// DefaultServerConfig returns sensible defaults for the inference server
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		GinMode:         "release",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    1 << 20,
		MaxBatchSize:    1000,
	}
}
