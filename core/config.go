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
	_ "time/tzdata" // timezone database for minimal containers

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address                   string        `mapstructure:"address"`
		Host                      string        `mapstructure:"host"`
		DebugHost                 string        `mapstructure:"debugHost"`
		ShutdownTimeout           time.Duration `mapstructure:"shutdownTimeout"`
		JWTExpirationDelta        time.Duration `mapstructure:"jwtExpirationDelta"`
		JWTRefreshExpirationDelta time.Duration `mapstructure:"jwtRefreshExpirationDelta"`
		DisableReqLogs            bool          `mapstructure:"disableReqLogs"`
	}

	DatabaseConfig struct {
		Engine        string `mapstructure:"engine"`
		Host          string `mapstructure:"host"`
		Port          int    `mapstructure:"port"`
		Name          string `mapstructure:"name"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminUser"`
		AdminPassword string `mapstructure:"adminPassword"`
		DisableTLS    bool   `mapstructure:"disableTLS"`
	}

	MailConfig struct {
		DefaultFromEmail string `mapstructure:"defaultFromEmail"`
		SendgridApiKey   string `mapstructure:"sendgridApiKey"`
	}

	RollbarConfig struct {
		Token string `mapstructure:"token"`
	}

	RabbitMQConfig struct {
		URL      string `mapstructure:"url"`
		Exchange string `mapstructure:"exchange"`
	}

	CalendarConfig struct {
		UIDDomain string `mapstructure:"uidDomain"`
		ProductID string `mapstructure:"productID"`
	}

	Config struct {
		Env             string         `mapstructure:"env"`
		Build           string         `mapstructure:"build"`
		Debug           bool           `mapstructure:"debug"`
		TestMode        bool           `mapstructure:"testMode"`
		AppName         string         `mapstructure:"appName"`
		SecretKey       string         `mapstructure:"secretKey"`
		FrontendBaseURL string         `mapstructure:"frontendBaseURL"`
		Timezone        string         `mapstructure:"timezone"`
		Server          ServerConfig   `mapstructure:"server"`
		Database        DatabaseConfig `mapstructure:"database"`
		Mail            MailConfig     `mapstructure:"mail"`
		Rollbar         RollbarConfig  `mapstructure:"rollbar"`
		RabbitMQ        RabbitMQConfig `mapstructure:"rabbitmq"`
		Calendar        CalendarConfig `mapstructure:"calendar"`

		loc *time.Location
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "MMI Agenda")
	v.SetDefault("secretKey", "k9#f2-vz!mq0$w7r=agenda@x1(p)c4u8h^t5n&e3j6")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("timezone", "Europe/Paris")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "agenda")
	v.SetDefault("database.user", "agenda")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("mail.defaultFromEmail", "MMI Agenda <no-reply@mmi-agenda.com>")
	v.SetDefault("mail.sendgridApiKey", "")

	v.SetDefault("rollbar.token", "")

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "agenda.events")

	v.SetDefault("calendar.uidDomain", "mmi-agenda.com")
	v.SetDefault("calendar.productID", "-//MMI Agenda//Assignments//FR")
}

// NewConfig loads the app configuration from defaults, an optional `config/.env.<env>` file
// and the environment (prefixed with the env name, eg. `PROD_DATABASE_HOST`).
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.Set("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	conf.loc = loadLocation(conf.Timezone)
	return conf
}

// NewTestConfig returns the defaults in test mode, without reading the environment.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("env", "TEST")
	v.Set("testMode", true)

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	conf.loc = loadLocation(conf.Timezone)
	return conf
}

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("config: unknown timezone %q, falling back to UTC", name)
		return time.UTC
	}
	return loc
}

// Location is the timezone used to format and parse user facing dates.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.Mail.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "no-reply@mmi-agenda.com"}
	}
	return *addr
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
