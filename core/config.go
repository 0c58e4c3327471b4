package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		APIAddr         string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	AttendanceConfig struct {
		// MaxEventLag is how far in the past an event's occurred_at may be;
		// it tolerates devices syncing after being offline.
		MaxEventLag time.Duration
		// MaxEventLead tolerates modest device clock skew into the future.
		MaxEventLead time.Duration
		// LockTimeout bounds the per-student lock + predecessor lookup.
		LockTimeout time.Duration
	}

	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		Build    string
		AppName  string

		// TimeZone is the tenant's IANA timezone; notification days are
		// bucketed in this zone.
		TimeZone string

		Server     ServerConfig
		Database   DatabaseConfig
		Attendance AttendanceConfig

		RollbarToken string

		v       *viper.Viper
		locOnce sync.Once
		loc     *time.Location
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Attendance")
	v.SetDefault("build", "develop")
	v.SetDefault("timeZone", "America/Santiago")
	v.SetDefault("enableSequenceValidation", true)

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("apiAddr", ":8000")
	v.SetDefault("debugHost", "localhost:4000")
	v.SetDefault("shutdownTimeout", 20*time.Second)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "attendance")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("eventMaxLag", 7*24*time.Hour)
	v.SetDefault("eventMaxLead", time.Hour)
	v.SetDefault("lockTimeout", 5*time.Second)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
		// also track it with viper so runtime flags can be hot-reloaded
		v.SetConfigFile(dotEnvPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			log.Fatalf("config.viper(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Debug:    v.GetBool("debug"),
		TestMode: env == "TEST",
		Env:      env,
		Build:    v.GetString("build"),
		AppName:  v.GetString("appName"),
		TimeZone: v.GetString("timeZone"),
		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			APIAddr:         v.GetString("apiAddr"),
			DebugHost:       v.GetString("debugHost"),
			ShutdownTimeout: v.GetDuration("shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Attendance: AttendanceConfig{
			MaxEventLag:  v.GetDuration("eventMaxLag"),
			MaxEventLead: v.GetDuration("eventMaxLead"),
			LockTimeout:  v.GetDuration("lockTimeout"),
		},
		RollbarToken: v.GetString("rollbarToken"),
		v:            v,
	}
}

// SequenceValidationEnabled is read from viper on every call so the flag can
// be flipped at runtime without a restart.
func (c *Config) SequenceValidationEnabled() bool {
	return c.v.GetBool("enableSequenceValidation")
}

// WatchFlags reloads runtime flags whenever the tracked .env file changes.
// It is a no-op when no .env file was found at startup.
func (c *Config) WatchFlags(logger Logger) {
	if c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config reloaded: " + e.Name)
	})
	c.v.WatchConfig()
}

// Location resolves the tenant timezone once; an unknown zone falls back to
// UTC. It is safe for concurrent use.
func (c *Config) Location() *time.Location {
	c.locOnce.Do(func() {
		loc, err := time.LoadLocation(c.TimeZone)
		if err != nil {
			log.Printf("config: unknown timezone %q, falling back to UTC", c.TimeZone)
			loc = time.UTC
		}
		c.loc = loc
	})
	return c.loc
}
