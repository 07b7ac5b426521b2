package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		WorkDir          string
		Debug            bool
		TestMode         bool
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail mail.Address

		Server   ServerConfig
		Database DatabaseConfig
		Upload   UploadConfig
	}

	ServerConfig struct {
		Host            string
		Port            string
		DebugHost       string
		ShutdownTimeout time.Duration
		// JWTSecret verifies the tokens issued by the auth provider.
		JWTSecret string
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		// LocalPath is the JSON snapshot file of the memory engine. Empty means no persistence.
		LocalPath string
	}

	UploadConfig struct {
		MaxSize int64 // bytes
	}
)

// MaxUploadSize caps UploadConfig.MaxSize.
const MaxUploadSize int64 = 10 << 20

// Limit is MaxSize, or MaxUploadSize when MaxSize is unset or above it.
func (c UploadConfig) Limit() int64 {
	if c.MaxSize <= 0 || c.MaxSize > MaxUploadSize {
		return MaxUploadSize
	}
	return c.MaxSize
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c DatabaseConfig) InMemory() bool {
	return c.Engine == "memory"
}

func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	workDir := Getwd()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Asistencia UTP")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("defaultFromName", "Asistencia UTP")

	v.SetDefault("serverHost", "")
	v.SetDefault("serverPort", "8000")
	v.SetDefault("serverDebugHost", "localhost:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtSecret", "s3cr3t-!-change-me")

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "asistencia")
	v.SetDefault("dbUser", "asistencia")
	v.SetDefault("dbPassword", "asistencia")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("dbLocalPath", "")

	v.SetDefault("uploadMaxSize", MaxUploadSize)

	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:        v.GetString("appName"),
		Env:            env,
		Build:          v.GetString("build"),
		WorkDir:        workDir,
		Debug:          v.GetBool("debug"),
		TestMode:       v.GetBool("testMode"),
		RollbarToken:   v.GetString("rollbarToken"),
		SendgridApiKey: v.GetString("sendgridApiKey"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("defaultFromName"),
			Address: v.GetString("defaultFromEmail"),
		},
		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			Port:            v.GetString("serverPort"),
			DebugHost:       v.GetString("serverDebugHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
			JWTSecret:       v.GetString("jwtSecret"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
			LocalPath:     v.GetString("dbLocalPath"),
		},
		Upload: UploadConfig{
			MaxSize: v.GetInt64("uploadMaxSize"),
		},
	}
}

// NewTestConfig returns the configuration used by tests: in-memory storage, no external services.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "Asistencia UTP",
		Env:              "TEST",
		Build:            "test",
		WorkDir:          Getwd(),
		TestMode:         true,
		DefaultFromEmail: mail.Address{Name: "Asistencia UTP", Address: "noreply@localhost"},
		Server: ServerConfig{
			Port:            "8000",
			ShutdownTimeout: time.Second,
			JWTSecret:       "test-secret",
		},
		Database: DatabaseConfig{Engine: "memory"},
		Upload:   UploadConfig{MaxSize: MaxUploadSize},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (env=%s build=%s db=%s)", c.AppName, c.Env, c.Build, c.Database.Engine)
}
