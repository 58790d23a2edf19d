// config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server  ServerConfiguration
	Redis   RedisConfiguration
	Elastic ElasticConfiguration
	Stream  StreamConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr            string
	DefaultCacheTTL string
}

// ElasticConfiguration stores data for the Elasticsearch audit sink
type ElasticConfiguration struct {
	URL string
}

// StreamConfiguration stores the client-side connection tunables
type StreamConfiguration struct {
	URL         string
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.defaultCacheTTL", "10m")
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("log.dir", "logging")

	// Stream endpoint and reconnection policy
	viper.SetDefault("stream.url", "ws://localhost:8080/ws")
	viper.SetDefault("stream.backoffBase", "1s")
	viper.SetDefault("stream.backoffMax", "30s")
	viper.SetDefault("stream.gracePeriod", "10s")
	viper.SetDefault("stream.pingInterval", "25s")
	viper.SetDefault("stream.pongTimeout", "60s")
	viper.SetDefault("stream.handshakeTimeout", "10s")

	// Notification feed
	viper.SetDefault("notifications.capacity", 50)

	// Impersonation session persistence ("file" or "redis")
	viper.SetDefault("impersonation.storage", "file")
	viper.SetDefault("impersonation.storagePath", ".pulse/impersonation.json")
	viper.SetDefault("impersonation.redisKey", "impersonation:session")

	// Access control
	viper.SetDefault("access.adminRole", "admin")

	// Relay auth (HMAC secret for bearer tokens on the stream handshake)
	viper.SetDefault("auth.secret", "")

	// REST backend the agent talks to
	viper.SetDefault("api.baseURL", "http://localhost:8080")

	// Embedded agent (client core) wiring
	viper.SetDefault("agent.enabled", false)
	viper.SetDefault("agent.userID", "")
	viper.SetDefault("agent.token", "")

	// Dev relay extras
	viper.SetDefault("relay.demoEvents", false)
	viper.SetDefault("relay.demoInterval", "5s")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
