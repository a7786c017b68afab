package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string `validate:"required,oneof=DEV TEST QA PROD"`
		Debug            bool
		TestMode         bool
		AppName          string `validate:"required"`
		Build            string
		SecretKey        string `validate:"required,min=16"`
		RollbarToken     string
		SendgridAPIKey   string
		DefaultFromEmail string `validate:"required"`

		Server  ServerConfig
		ArcGIS  ArcGISConfig
		Fetch   FetchConfig
		Session SessionConfig

		v *viper.Viper
	}

	ServerConfig struct {
		Address         string `validate:"required"`
		Host            string
		DisableReqLogs  bool
		ShutdownTimeout time.Duration `validate:"gt=0"`
	}

	ArcGISConfig struct {
		PortalURL       string `validate:"required,url"`
		Username        string
		Password        string
		TokenExpiration time.Duration `validate:"gt=0"`
	}

	FetchConfig struct {
		Timeout time.Duration `validate:"gt=0"`
		Retries int           `validate:"gte=0,lte=5"`
	}

	SessionConfig struct {
		CookieName  string        `validate:"required"`
		TTL         time.Duration `validate:"gt=0"`
		MaxSessions int           `validate:"gte=0"`
	}
)

// LoadConfig reads the configuration from the environment,
// loading `.env` and `config/.env.<env>` first when they exist.
func LoadConfig() (*Config, error) {
	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// load .env files if they exist (ignore if they do not)
	for _, path := range []string{
		filepath.Join("config", ".env."+strings.ToLower(env)),
		".env",
	} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return nil, errors.Wrapf(err, "loading %s", path)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "checking %s", path)
		}
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Bright Water Reporting Dashboard")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Bright Water <noreply@localhost>")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("arcgis.portalUrl", "https://bwf.maps.arcgis.com/")
	v.SetDefault("arcgis.username", "")
	v.SetDefault("arcgis.password", "")
	v.SetDefault("arcgis.tokenExpiration", time.Hour)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.retries", 2)
	v.SetDefault("session.cookieName", "swe_session")
	v.SetDefault("session.ttl", 12*time.Hour)
	v.SetDefault("session.maxSessions", 500)

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// the hosted GIS credentials keep their historical, un-prefixed names
	_ = v.BindEnv("arcgis.username", "UNAME")
	_ = v.BindEnv("arcgis.password", "PASSWORD")

	conf := &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			Host:            v.GetString("server.host"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		ArcGIS: ArcGISConfig{
			PortalURL:       v.GetString("arcgis.portalUrl"),
			Username:        v.GetString("arcgis.username"),
			Password:        v.GetString("arcgis.password"),
			TokenExpiration: v.GetDuration("arcgis.tokenExpiration"),
		},
		Fetch: FetchConfig{
			Timeout: v.GetDuration("fetch.timeout"),
			Retries: v.GetInt("fetch.retries"),
		},
		Session: SessionConfig{
			CookieName:  v.GetString("session.cookieName"),
			TTL:         v.GetDuration("session.ttl"),
			MaxSessions: v.GetInt("session.maxSessions"),
		},
		v: v,
	}
	if err := conf.Validate(validator.New()); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return conf, nil
}

func (c *Config) Validate(validate *validator.Validate) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(c.DefaultFromEmail); err != nil {
		return NewValidationError(err, FieldError{Field: "defaultFromEmail", Error: err.Error()})
	}
	return nil
}

// DefaultFromAddress parses DefaultFromEmail, which Validate already checked.
func (c *Config) DefaultFromAddress() mail.Address {
	addr, err := mail.ParseAddress(c.DefaultFromEmail)
	if err != nil {
		return mail.Address{Address: c.DefaultFromEmail}
	}
	return *addr
}

// ItemIDs returns the hosted item id configured for each project key.
// Each key is read from the upper-cased, un-prefixed environment variable (eg. AKROFUFU1).
// Keys without a configured item are left out.
func (c *Config) ItemIDs(keys []string) map[string]string {
	ids := make(map[string]string, len(keys))
	if c.v == nil {
		return ids
	}
	for _, key := range keys {
		name := "items." + key
		_ = c.v.BindEnv(name, strings.ToUpper(key))
		if id := CleanString(c.v.GetString(name)); id != "" {
			ids[key] = id
		}
	}
	return ids
}
