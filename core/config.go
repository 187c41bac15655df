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
		Env              string // DEV (local; default), TEST, QA, PROD
		Debug            bool
		TestMode         bool
		AppName          string
		Build            string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridApiKey   string
		WorkDir          string

		Server       ServerConfig
		Database     DatabaseConfig
		Notification NotificationConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		DisableReqLogs            bool
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Driver        string // postgres | memory
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	NotificationConfig struct {
		// BroadcastCap bounds how many recipients a broadcast event fans out to.
		BroadcastCap int
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

// NewConfig loads the app configuration from defaults, an optional
// config/.env.<env> file and <ENV>_ prefixed environment variables.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v, env)

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: *fromEmail,
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		WorkDir:          wd,
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Driver:        v.GetString("database.driver"),
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
		},
		Notification: NotificationConfig{
			BroadcastCap: v.GetInt("notification.broadcastCap"),
		},
	}
}

func setDefaults(v *viper.Viper, env string) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "CourseConnect")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "CourseConnect <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "courseconnect")
	v.SetDefault("database.user", "courseconnect")
	v.SetDefault("database.password", "courseconnect")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 10)

	v.SetDefault("notification.broadcastCap", 10)
}

// NewTestConfig returns a Config suitable for tests; it never reads the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Debug:            false,
		TestMode:         true,
		AppName:          "CourseConnect",
		Build:            "test",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "CourseConnect", Address: "noreply@localhost"},
		Server: ServerConfig{
			DisableReqLogs:            true,
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Database:     DatabaseConfig{Driver: "memory"},
		Notification: NotificationConfig{BroadcastCap: 10},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s@%s (%s)", c.AppName, c.Build, c.Env)
}
