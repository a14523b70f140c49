// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	configPath        = pflag.String("config", ".", "Directory to look for a config.toml file in")
	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validStorageTypes = []string{"local", "s3"}
)

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(*configPath)

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "APP_LOG_LEVEL")

	v.BindEnv("host.port", "PORT")
	v.BindEnv("host.cors_origins", "CORS_ORIGINS")

	v.BindEnv("db.url", "DATABASE_URL")
	v.BindEnv("db.name", "DATABASE_NAME")

	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.expire_minutes", "JWT_EXPIRE_MINUTES")

	v.BindEnv("ai.openai_api_key", "OPENAI_API_KEY")
	v.BindEnv("ai.anthropic_api_key", "ANTHROPIC_API_KEY")

	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.upload_dir", "UPLOAD_DIR")

	v.BindEnv("upload.max_size", "MAX_FILE_SIZE")

	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8000)
	v.SetDefault("host.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.name", "krisbot")

	v.SetDefault("jwt.expire_minutes", 60)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.upload_dir", "uploads")

	v.SetDefault("upload.max_size", 10485760)

	if err := v.ReadInConfig(); err != nil {
		// The config.toml file is optional, everything can come
		// from the environment instead
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file, %w", err)
		}
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetInt64("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if v.GetInt("jwt.expire_minutes") <= 0 {
		return errors.New("jwt.expire_minutes must be bigger than 0")
	}

	if v.GetString("jwt.secret") == "" {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	if !slices.Contains(validStorageTypes, v.GetString("storage.type")) {
		return errors.New("invalid storage type provided")
	}

	if v.GetString("storage.type") == "local" && v.GetString("storage.upload_dir") == "" {
		return errors.New("upload dir can't be empty")
	}

	if v.GetString("storage.type") == "s3" {
		if v.GetString("s3.bucket") == "" {
			return errors.New("bucket can't be empty")
		}
		if v.GetString("s3.access_key_id") == "" {
			return errors.New("access key id can't be empty")
		}
		if v.GetString("s3.secret_access_key") == "" {
			return errors.New("secret access key can't be empty")
		}
	}

	return nil
}
