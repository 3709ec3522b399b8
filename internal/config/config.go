// Package config loads the server configuration: defaults first, then the
// JSON config file, then command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"chatapp-gateway/internal/models"
)

const DefaultPath = "config.json"

func LoadDefaults(cfg *models.ConfigFile) {
	cfg.Address = "0.0.0.0"
	cfg.Port = "3001"
	cfg.LogLevel = "info"
	cfg.JwtLifetime = "168h"
	cfg.SelfContained = true
	cfg.Database = "sqlite"
	cfg.DbPath = "./database.db"
	cfg.RedisAddress = "localhost:6379"
}

// Load builds the configuration for args (os.Args[1:] in production).
// A missing config file at the default path is not an error.
func Load(args []string) (*models.ConfigFile, error) {
	cfg := &models.ConfigFile{}
	LoadDefaults(cfg)

	fs := flag.NewFlagSet("chatapp-gateway", flag.ContinueOnError)
	path := fs.String("config", DefaultPath, "path to the JSON config file")
	address := fs.String("address", "", "address to listen on")
	port := fs.String("port", "", "port to listen on")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	err := readFile(*path, cfg)
	if err != nil {
		if !(errors.Is(err, os.ErrNotExist) && *path == DefaultPath) {
			return nil, err
		}
	}

	if *address != "" {
		cfg.Address = *address
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *models.ConfigFile) error {
	configFile, err := os.Open(path)
	if err != nil {
		return err
	}
	defer configFile.Close()

	bytes, err := io.ReadAll(configFile)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(bytes, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func Validate(cfg *models.ConfigFile) error {
	if len(cfg.JwtSecret) < 16 {
		return fmt.Errorf("JwtSecret must be at least 16 characters long")
	}

	switch cfg.Database {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database %q", cfg.Database)
	}

	if _, err := JwtLifetime(cfg); err != nil {
		return err
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", cfg.LogLevel)
	}
	return nil
}

func JwtLifetime(cfg *models.ConfigFile) (time.Duration, error) {
	lifetime, err := time.ParseDuration(cfg.JwtLifetime)
	if err != nil {
		return 0, fmt.Errorf("invalid JwtLifetime %q: %w", cfg.JwtLifetime, err)
	}
	if lifetime <= 0 {
		return 0, fmt.Errorf("JwtLifetime must be positive")
	}
	return lifetime, nil
}

// IsHttps reports whether both TLS files are configured.
func IsHttps(cfg *models.ConfigFile) bool {
	return cfg.TlsCert != "" && cfg.TlsKey != ""
}
