package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Store engines
const (
	EngineMemory   = "memory"
	EnginePostgres = "postgres"
	EngineSqlite   = "sqlite3"
	EngineFirebase = "firebase"
)

type (
	Config struct {
		AppName      string
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		WorkDir      string
		TimeZone     string
		RollbarToken string

		Server   ServerConfig
		Store    StoreConfig
		Database DatabaseConfig
		Firebase FirebaseConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	StoreConfig struct {
		Engine string
		// PollInterval is how often engines without push notifications refresh subscriptions.
		PollInterval time.Duration
	}

	DatabaseConfig struct {
		Host          string
		Port          int
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
		// Path is the sqlite file (or ":memory:").
		Path string
	}

	FirebaseConfig struct {
		DatabaseURL     string
		CredentialsFile string
	}
)

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "Hazira")
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "develop")
	conf.SetDefault("timeZone", "Local")
	conf.SetDefault("workDir", workDir())

	conf.SetDefault("server.host", "0.0.0.0:8000")
	conf.SetDefault("server.debugHost", "0.0.0.0:4000")
	conf.SetDefault("server.readTimeout", 5*time.Second)
	conf.SetDefault("server.writeTimeout", 5*time.Second)
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)

	conf.SetDefault("store.engine", EngineMemory)
	conf.SetDefault("store.pollInterval", 3*time.Second)

	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.name", "hazira")
	conf.SetDefault("database.path", "hazira.db")
	conf.SetDefault("database.disableTLS", false)

	// no defaults, registered so that AutomaticEnv picks them up on Unmarshal
	for _, key := range []string{
		"rollbarToken",
		"database.user", "database.password", "database.adminUser", "database.adminPassword",
		"firebase.databaseURL", "firebase.credentialsFile",
	} {
		conf.SetDefault(key, "")
	}
	conf.SetDefault("testMode", false)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetDefault("env", env)
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(conf.GetString("workDir"), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	var c Config
	if err := conf.Unmarshal(&c); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	return &c
}

// Validate checks that the settings required by the selected store engine are present.
func (c *Config) Validate() error {
	v := vala.BeginValidation()
	switch c.Store.Engine {
	case EngineMemory:
	case EngineFirebase:
		v = v.Validate(vala.StringNotEmpty(c.Firebase.DatabaseURL, "firebase.databaseURL"))
	case EnginePostgres:
		v = v.Validate(
			vala.StringNotEmpty(c.Database.Host, "database.host"),
			vala.StringNotEmpty(c.Database.Name, "database.name"),
		)
	case EngineSqlite:
		v = v.Validate(vala.StringNotEmpty(c.Database.Path, "database.path"))
	default:
		return errors.Errorf("unknown store engine %q", c.Store.Engine)
	}
	if err := v.Check(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// Location returns the time zone used for calendar computations.
func (c *Config) Location() *time.Location {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

func workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	return wd
}
