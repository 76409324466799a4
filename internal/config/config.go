/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the dispatch-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	DispatchEventExchange      string `mapstructure:"DISPATCH_EVENT_EXCHANGE"`
	GeocoderBaseURL            string `mapstructure:"GEOCODER_BASE_URL"`
	GeocoderAPIKey             string `mapstructure:"GEOCODER_API_KEY"`
	PushGatewayURL             string `mapstructure:"PUSH_GATEWAY_URL"`
	PushGatewayAPIKey          string `mapstructure:"PUSH_GATEWAY_API_KEY"`
	AuthJWKSURL                string `mapstructure:"AUTH_JWKS_URL"`
	LocationPingLimitPerMinute int    `mapstructure:"LOCATION_PING_LIMIT_PER_MINUTE"`
	ExpirySweepSchedule        string `mapstructure:"EXPIRY_SWEEP_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DISPATCH_EVENT_EXCHANGE", "dispatch_events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "allobrico:rate_limit")
	viper.SetDefault("LOCATION_PING_LIMIT_PER_MINUTE", 4)
	viper.SetDefault("EXPIRY_SWEEP_SCHEDULE", "* * * * *")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "DISPATCH_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("DISPATCH_EVENT_EXCHANGE")
	_ = viper.BindEnv("GEOCODER_BASE_URL")
	_ = viper.BindEnv("GEOCODER_API_KEY")
	_ = viper.BindEnv("PUSH_GATEWAY_URL")
	_ = viper.BindEnv("PUSH_GATEWAY_API_KEY")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("LOCATION_PING_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("EXPIRY_SWEEP_SCHEDULE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "allobrico:rate_limit"
	}
	config.DispatchEventExchange = strings.TrimSpace(config.DispatchEventExchange)
	if config.DispatchEventExchange == "" {
		config.DispatchEventExchange = "dispatch_events"
	}

	if config.LocationPingLimitPerMinute <= 0 {
		config.LocationPingLimitPerMinute = 4
	}
	if strings.TrimSpace(config.ExpirySweepSchedule) == "" {
		config.ExpirySweepSchedule = "* * * * *"
	}

	return
}
