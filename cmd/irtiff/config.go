package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/vearutop/irtiff/internal/objstore"
)

// config holds defaults taken from the environment, flags override them.
type config struct {
	SDKDir    string
	Extractor string
	TempDir   string
	Timeout   time.Duration
	LogLevel  zerolog.Level
	S3        objstore.Config
	S3Prefix  string
}

func loadConfig() (config, error) {
	cfg := config{
		SDKDir:    getEnv("IRTIFF_SDK_DIR", "dji_thermal_sdk"),
		Extractor: os.Getenv("IRTIFF_EXTRACTOR"),
		TempDir:   os.Getenv("IRTIFF_TEMP_DIR"),
		Timeout:   2 * time.Minute,
		LogLevel:  zerolog.InfoLevel,
		S3: objstore.Config{
			Endpoint:  os.Getenv("IRTIFF_S3_ENDPOINT"),
			AccessKey: os.Getenv("IRTIFF_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("IRTIFF_S3_SECRET_KEY"),
			Bucket:    getEnv("IRTIFF_S3_BUCKET", "irtiff"),
			Region:    os.Getenv("IRTIFF_S3_REGION"),
			UseSSL:    getEnvBool("IRTIFF_S3_USE_SSL", false),
		},
		S3Prefix: os.Getenv("IRTIFF_S3_PREFIX"),
	}

	if v := os.Getenv("IRTIFF_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: IRTIFF_TIMEOUT: %v", errUsage, err)
		}
		cfg.Timeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			return cfg, fmt.Errorf("%w: LOG_LEVEL: %v", errUsage, err)
		}
		cfg.LogLevel = lvl
	}

	return cfg, nil
}

// preloadEnv loads the file named by -env, or .env when present, without
// overriding variables already set in the process environment.
func preloadEnv(args []string) error {
	name := envFileArg(args)
	if name == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		name = ".env"
	}
	if err := godotenv.Load(name); err != nil {
		return fmt.Errorf("load env file %s: %w", name, err)
	}
	return nil
}

func envFileArg(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		a = strings.TrimPrefix(a, "-")
		a = strings.TrimPrefix(a, "-")
		if v, ok := strings.CutPrefix(a, "env="); ok {
			return v
		}
		if a == "env" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
