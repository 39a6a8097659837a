package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from
// environment variables.
type Config struct {
	Env              string
	HTTPAddr         string
	MongoURI         string
	MongoDB          string
	JWTSecret        string
	JWTIssuer        string
	SessionTTL       time.Duration
	KafkaBrokers     []string
	KafkaTopicPrefix string
	WSSendBuffer     int
	WSReadLimit      int64
	WSHandshake      time.Duration
	UserFixtures     string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "stitchtalk"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTIssuer:        getEnv("JWT_ISSUER", "stitchtalk"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		UserFixtures:     os.Getenv("USER_FIXTURES"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	sessionTTL, err := parseDurationEnv("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL = sessionTTL

	handshake, err := parseDurationEnv("WS_HANDSHAKE_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.WSHandshake = handshake

	sendBuffer, err := parseIntEnv("WS_SEND_BUFFER", 32)
	if err != nil {
		return Config{}, err
	}
	cfg.WSSendBuffer = sendBuffer

	readLimit, err := parseIntEnv("WS_READ_LIMIT", 64*1024)
	if err != nil {
		return Config{}, err
	}
	cfg.WSReadLimit = int64(readLimit)

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	var value int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &value); err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s integer: %q", key, raw)
	}
	return value, nil
}
