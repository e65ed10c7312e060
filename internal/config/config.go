package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server   ServerConfig
	Backends BackendsConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	backends, err := loadBackendsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Backends: backends}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	MaxUploadBytes int64
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	var addr string
	switch {
	case strings.Contains(port, ":"):
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		addr = ":" + port
	}

	maxUploadMB := 10
	if override, err := parseOptionalIntEnv("MAX_UPLOAD_MB"); err != nil {
		return ServerConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ServerConfig{}, fmt.Errorf("MAX_UPLOAD_MB must be at least 1, got %d", *override)
		}
		maxUploadMB = *override
	}

	return ServerConfig{
		Addr:           addr,
		MaxUploadBytes: int64(maxUploadMB) << 20,
	}, nil
}

// BackendsConfig describes the external AI backends the assistant
// depends on. They all default to the same local deployment.
type BackendsConfig struct {
	ChatBaseURL        string
	DiseaseBaseURL     string
	DietPlannerBaseURL string
	Timeout            time.Duration
}

func loadBackendsConfig() (BackendsConfig, error) {
	timeoutSeconds := 30
	if override, err := parseOptionalIntEnv("BACKEND_TIMEOUT"); err != nil {
		return BackendsConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return BackendsConfig{}, fmt.Errorf("BACKEND_TIMEOUT must be at least 1 second, got %d", *override)
		}
		timeoutSeconds = *override
	}

	defaultBase := getEnvOrDefault("BACKEND_BASE_URL", "http://localhost:8000")

	return BackendsConfig{
		ChatBaseURL:        normalizeBaseURL(getEnvOrDefault("CHAT_API_BASE_URL", defaultBase)),
		DiseaseBaseURL:     normalizeBaseURL(getEnvOrDefault("DISEASE_API_BASE_URL", defaultBase)),
		DietPlannerBaseURL: normalizeBaseURL(getEnvOrDefault("DIETPLANNER_API_BASE_URL", defaultBase)),
		Timeout:            time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

func normalizeBaseURL(raw string) string {
	return strings.TrimRight(raw, "/")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
