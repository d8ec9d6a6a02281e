package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/spf13/viper"
)

// Conf is the app-wide configuration. It is set once by NewConfig on startup.
var Conf *Config

type (
	Config struct {
		Debug                     bool
		TestMode                  bool
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		AppName                   string
		SecretKey                 []byte
		WorkDir                   string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		OpenAI   OpenAIConfig
	}

	ServerConfig struct {
		Host                      string
		APIHost                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          int
		DisableTLS    bool
	}

	OpenAIConfig struct {
		ApiKey  string
		Model   string
		BaseURL string
		Timeout time.Duration
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

// NewConfig loads the app configuration from the environment
// (and an optional config/.env.<env> file) and sanity-checks it.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Hagwon")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "x2t$0n=f)ei#yp*c4ljj&@u1)-g3+yqe0d7gsfx0b+z2(qw&er") // dev only
	v.SetDefault("frontendBaseUrl", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("apiHost", "0.0.0.0:8000")
	v.SetDefault("debugHost", "0.0.0.0:4000")
	v.SetDefault("shutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 10*time.Minute)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "hagwon")
	v.SetDefault("dbUser", "hagwon")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("openaiModel", "gpt-4o-mini")
	v.SetDefault("openaiBaseUrl", "https://api.openai.com")
	v.SetDefault("openaiTimeout", 30*time.Second)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	workDir := findWorkDir()

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

	conf := &Config{
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		Env:                       env,
		Build:                     v.GetString("build"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 []byte(v.GetString("secretKey")),
		WorkDir:                   workDir,
		FrontendBaseURL:           v.GetString("frontendBaseUrl"),
		DefaultFromEmail:          mail.Address{Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
	}
	conf.Server.Host = v.GetString("serverHost")
	conf.Server.APIHost = v.GetString("apiHost")
	conf.Server.DebugHost = v.GetString("debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("jwtRefreshExpirationDelta")
	conf.Database.Engine = v.GetString("dbEngine")
	conf.Database.Name = v.GetString("dbName")
	conf.Database.User = v.GetString("dbUser")
	conf.Database.Password = v.GetString("dbPassword")
	conf.Database.AdminUser = v.GetString("dbAdminUser")
	conf.Database.AdminPassword = v.GetString("dbAdminPassword")
	conf.Database.Host = v.GetString("dbHost")
	conf.Database.Port = v.GetInt("dbPort")
	conf.Database.DisableTLS = v.GetBool("dbDisableTls")
	if conf.Debug || conf.TestMode {
		conf.Database.DisableTLS = true
	}
	conf.OpenAI.ApiKey = v.GetString("openaiApiKey")
	conf.OpenAI.Model = v.GetString("openaiModel")
	conf.OpenAI.BaseURL = v.GetString("openaiBaseUrl")
	conf.OpenAI.Timeout = v.GetDuration("openaiTimeout")

	if err := conf.check(); err != nil {
		log.Fatalf("config.check: %v", err)
	}

	Conf = conf
	return conf
}

func (conf *Config) check() error {
	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.AppName, "appName"),
		vala.StringNotEmpty(string(conf.SecretKey), "secretKey"),
		vala.StringNotEmpty(conf.Database.Engine, "dbEngine"),
		vala.StringNotEmpty(conf.Database.Name, "dbName"),
		vala.StringNotEmpty(conf.OpenAI.Model, "openaiModel"),
		vala.StringNotEmpty(conf.OpenAI.BaseURL, "openaiBaseUrl"),
	).Check(); err != nil {
		return err
	}
	if !(conf.Debug || conf.TestMode) {
		return vala.BeginValidation().Validate(
			vala.StringNotEmpty(conf.SendgridApiKey, "sendgridApiKey"),
			vala.StringNotEmpty(conf.RollbarToken, "rollbarToken"),
			vala.StringNotEmpty(conf.OpenAI.ApiKey, "openaiApiKey"),
		).Check()
	}
	return nil
}

// findWorkDir finds the project root (the dir holding go.mod).
// go-test changes the working directory to the test package being run during tests... this breaks our code...
// see: https://stackoverflow.com/questions/23847003/golang-tests-and-working-directory
func findWorkDir() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		parent := filepath.Dir(currDir)
		if parent == currDir {
			return wd
		}
		currDir = parent
	}
}
