// Package config reads service settings from the environment. A .env file
// in the working directory is loaded first when present; variables already
// set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Orders struct {
	Port          string
	PostgresURL   string
	KafkaBrokers  []string
	RedisAddr     string
	LockTimeout   time.Duration
	StatusViewTTL time.Duration
}

type Inventory struct {
	Port        string
	PostgresURL string
}

type Worker struct {
	PostgresURL  string
	KafkaBrokers []string
	GroupID      string
}

type Gateway struct {
	Port                string
	OrdersServiceURL    string
	InventoryServiceURL string
}

// LoadDotEnv loads .env if it exists.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func LoadOrders() (*Orders, error) {
	var errs []error
	cfg := &Orders{
		Port:         getEnv("PORT", "8081"),
		PostgresURL:  required("POSTGRES_URL", &errs),
		KafkaBrokers: list("KAFKA_BROKERS"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
	}
	cfg.LockTimeout = duration("LOCK_TIMEOUT", 5*time.Second, &errs)
	cfg.StatusViewTTL = duration("STATUS_VIEW_TTL", 30*time.Second, &errs)
	return cfg, errors.Join(errs...)
}

func LoadInventory() (*Inventory, error) {
	var errs []error
	cfg := &Inventory{
		Port:        getEnv("PORT", "8082"),
		PostgresURL: required("POSTGRES_URL", &errs),
	}
	return cfg, errors.Join(errs...)
}

func LoadWorker() (*Worker, error) {
	var errs []error
	cfg := &Worker{
		PostgresURL: required("POSTGRES_URL", &errs),
		GroupID:     getEnv("KAFKA_GROUP_ID", "cart-cleanup-worker"),
	}
	cfg.KafkaBrokers = list("KAFKA_BROKERS")
	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS environment variable is required"))
	}
	return cfg, errors.Join(errs...)
}

func LoadGateway() (*Gateway, error) {
	var errs []error
	cfg := &Gateway{
		Port:                getEnv("PORT", "8080"),
		OrdersServiceURL:    required("ORDERS_SERVICE_URL", &errs),
		InventoryServiceURL: required("INVENTORY_SERVICE_URL", &errs),
	}
	return cfg, errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func required(key string, errs *[]error) string {
	value := os.Getenv(key)
	if value == "" {
		*errs = append(*errs, fmt.Errorf("%s environment variable is required", key))
	}
	return value
}

func list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func duration(key string, fallback time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		*errs = append(*errs, fmt.Errorf("%s must be a non-negative duration, got %q", key, value))
		return fallback
	}
	return d
}
