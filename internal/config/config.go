package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// APIServerConfig 保存 API 服务器特有的配置。
type APIServerConfig struct {
	Host         string        `mapstructure:"HOST"`
	Port         string        `mapstructure:"PORT"`
	ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
	CORS         CORSConfig    `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// SignalServerConfig holds configuration for the live-stream signaling server.
type SignalServerConfig struct {
	Host          string `mapstructure:"HOST"`
	Port          string `mapstructure:"PORT"`
	WebSocketPath string `mapstructure:"WEBSOCKET_PATH"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName      string             `mapstructure:"APP_NAME"`
	AppVersion   string             `mapstructure:"APP_VERSION"`
	APIServer    APIServerConfig    `mapstructure:"API_SERVER"`
	SignalServer SignalServerConfig `mapstructure:"SIGNAL_SERVER"`
	Kafka        KafkaConfig        `mapstructure:"KAFKA"`
	Database     DatabaseConfig     `mapstructure:"DATABASE"`
	Storage      StorageConfig      `mapstructure:"STORAGE"`
	Auth         AuthConfig         `mapstructure:"AUTH"`
	WebSocket    WebSocketConfig    `mapstructure:"WEBSOCKET"`
	Redis        RedisConfig        `mapstructure:"REDIS"`
	Log          LogConfig          `mapstructure:"LOG"`
}

// KafkaConfig holds configuration for Kafka.
// When Enabled is false the services publish to a no-op producer.
type KafkaConfig struct {
	Enabled                bool     `mapstructure:"ENABLED"`
	Brokers                []string `mapstructure:"BROKERS"`
	ClientID               string   `mapstructure:"CLIENT_ID"`
	IdentityDeletedTopic   string   `mapstructure:"IDENTITY_DELETED_TOPIC"`
	FriendshipChangedTopic string   `mapstructure:"FRIENDSHIP_CHANGED_TOPIC"`
	ConsumerGroup          string   `mapstructure:"CONSUMER_GROUP"`
	Protocol               string   `mapstructure:"PROTOCOL"`
}

// DatabaseConfig holds configuration for the database.
// TYPE is "postgres" or "sqlite"; for sqlite, DB_NAME is the file path (or ":memory:").
type DatabaseConfig struct {
	Type     string `mapstructure:"TYPE"`
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// StorageConfig holds configuration for uploaded files.
//
// BASE_DIR is the directory public mount paths are resolved against:
// "/uploads/x.png" lives at BASE_DIR/uploads/x.png and "/media/y.mp4" at
// BASE_DIR/media/y.mp4. Avatars are stored as bare filenames under
// AVATAR_DIR, which is relative to BASE_DIR unless absolute.
type StorageConfig struct {
	BaseDir       string `mapstructure:"BASE_DIR"`
	AvatarDir     string `mapstructure:"AVATAR_DIR"`
	MaxFileSizeMB int64  `mapstructure:"MAX_FILE_SIZE_MB"`
}

// AuthConfig holds configuration for authentication (e.g., JWT).
type AuthConfig struct {
	JWTSecretKey   string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry      time.Duration `mapstructure:"JWT_EXPIRY"`
	AdminUsernames []string      `mapstructure:"ADMIN_USERNAMES"`
}

// IsAdmin reports whether username is one of the configured administrators.
func (a AuthConfig) IsAdmin(username string) bool {
	for _, name := range a.AdminUsernames {
		if name == username {
			return true
		}
	}
	return false
}

// WebSocketConfig holds configuration for WebSocket connections.
type WebSocketConfig struct {
	WriteWaitSeconds    int `mapstructure:"WRITE_WAIT_SECONDS"`
	PongWaitSeconds     int `mapstructure:"PONG_WAIT_SECONDS"`
	PingPeriodSeconds   int `mapstructure:"PING_PERIOD_SECONDS"`
	MaxMessageSizeBytes int `mapstructure:"MAX_MESSAGE_SIZE_BYTES"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"LEVEL"`
	Filename   string `mapstructure:"FILENAME"` // empty: console only
	MaxSize    int    `mapstructure:"MAX_SIZE"`
	MaxBackups int    `mapstructure:"MAX_BACKUPS"`
	MaxAge     int    `mapstructure:"MAX_AGE"`
	Compress   bool   `mapstructure:"COMPRESS"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory, if present, is loaded into the
// environment first.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("APP_NAME", "Social-Go")
	v.SetDefault("APP_VERSION", "0.0.1")

	v.SetDefault("API_SERVER.HOST", "0.0.0.0")
	v.SetDefault("API_SERVER.PORT", "8081")
	v.SetDefault("API_SERVER.READ_TIMEOUT", 30*time.Second)
	v.SetDefault("API_SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("API_SERVER.CORS.ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"})
	v.SetDefault("API_SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length"})
	v.SetDefault("API_SERVER.CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("API_SERVER.CORS.MAX_AGE", 300)

	v.SetDefault("SIGNAL_SERVER.HOST", "0.0.0.0")
	v.SetDefault("SIGNAL_SERVER.PORT", "8082")
	v.SetDefault("SIGNAL_SERVER.WEBSOCKET_PATH", "/ws")

	v.SetDefault("KAFKA.ENABLED", false)
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "social-go")
	v.SetDefault("KAFKA.IDENTITY_DELETED_TOPIC", "social-identity-deleted")
	v.SetDefault("KAFKA.FRIENDSHIP_CHANGED_TOPIC", "social-friendship-changed")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "social-signal-server")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")

	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "social_go_db")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.LOG_LEVEL", "warn")

	v.SetDefault("STORAGE.BASE_DIR", ".")
	v.SetDefault("STORAGE.AVATAR_DIR", "uploads/avatars")
	v.SetDefault("STORAGE.MAX_FILE_SIZE_MB", 100)

	v.SetDefault("AUTH.JWT_SECRET_KEY", "a_very_secret_key_that_should_be_changed")
	v.SetDefault("AUTH.JWT_EXPIRY", 15*time.Minute)
	v.SetDefault("AUTH.ADMIN_USERNAMES", []string{"admin"})

	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	v.SetDefault("WEBSOCKET.WRITE_WAIT_SECONDS", 10)
	v.SetDefault("WEBSOCKET.PONG_WAIT_SECONDS", 60)
	v.SetDefault("WEBSOCKET.PING_PERIOD_SECONDS", 54) // (60 * 9) / 10
	v.SetDefault("WEBSOCKET.MAX_MESSAGE_SIZE_BYTES", 64*1024)

	v.SetDefault("LOG.LEVEL", "info")
	v.SetDefault("LOG.FILENAME", "")
	v.SetDefault("LOG.MAX_SIZE", 100)
	v.SetDefault("LOG.MAX_BACKUPS", 5)
	v.SetDefault("LOG.MAX_AGE", 30)
	v.SetDefault("LOG.COMPRESS", true)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// For nested structs, viper uses underscore: STORAGE_BASE_DIR overrides STORAGE.BASE_DIR
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
