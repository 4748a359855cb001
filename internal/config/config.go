// Package config loads the portalkeeper configuration from a YAML file using
// Viper. The same file serves both binaries: the proxy reads every
// organization (including signing secrets), the agent picks the single
// organization it was started for.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/portalkeeper/portalkeeper/internal/validation"
)

// Config is the top-level configuration.
type Config struct {
	// ListenAddr is the address the proxy listens on (e.g. :8080).
	ListenAddr string `mapstructure:"listen_addr"`
	// Organizations lists every deployment this instance serves.
	Organizations []Organization `mapstructure:"organizations"`
}

// Organization holds one deployment: the upstream identity backend, the
// cookie-signing secret and the captive-portal gateway form layout.
type Organization struct {
	Slug string `mapstructure:"slug"`
	Name string `mapstructure:"name"`
	// Host is the base URL of the identity backend, e.g. https://radius.example.com.
	Host string `mapstructure:"host"`
	// SecretKey is the shared secret the cookie-signing key is derived from.
	SecretKey string `mapstructure:"secret_key"`
	// Timeout is the upstream request timeout in seconds.
	Timeout int `mapstructure:"timeout"`

	Settings      Settings      `mapstructure:"settings"`
	CaptivePortal CaptivePortal `mapstructure:"captive_portal"`
}

// Settings are the per-organization feature switches.
type Settings struct {
	MobilePhoneVerification bool `mapstructure:"mobile_phone_verification"`
	Subscriptions           bool `mapstructure:"subscriptions"`
	// PaymentIframe selects embedding over redirecting for hosted payments.
	PaymentIframe bool `mapstructure:"payment_iframe"`
	// PaymentRequiresInternet means the gateway must grant access before a
	// payment can complete, so a successful payment is followed by a fresh
	// captive-portal login.
	PaymentRequiresInternet bool `mapstructure:"payment_requires_internet"`
}

// FormField is one vendor-specific hidden field added to a gateway form.
type FormField struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

// LoginForm describes the captive-portal gateway login form.
type LoginForm struct {
	Method           string      `mapstructure:"method"`
	Action           string      `mapstructure:"action"`
	MacaddrParamName string      `mapstructure:"macaddr_param_name"`
	UsernameField    string      `mapstructure:"username_field"`
	PasswordField    string      `mapstructure:"password_field"`
	AdditionalFields []FormField `mapstructure:"additional_fields"`
}

// LogoutForm describes the captive-portal gateway logout form.
type LogoutForm struct {
	Method           string      `mapstructure:"method"`
	Action           string      `mapstructure:"action"`
	SessionIDField   string      `mapstructure:"session_id_field"`
	AdditionalFields []FormField `mapstructure:"additional_fields"`
	LogoutBySession  bool        `mapstructure:"logout_by_session"`
}

// CaptivePortal groups the gateway form layouts.
type CaptivePortal struct {
	LoginForm  LoginForm  `mapstructure:"login_form"`
	LogoutForm LogoutForm `mapstructure:"logout_form"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("listen_addr", ":8080")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(cfg.Organizations) == 0 {
		return nil, fmt.Errorf("config must define at least one organization")
	}

	seen := make(map[string]bool)
	for i := range cfg.Organizations {
		org := &cfg.Organizations[i]
		org.applyDefaults()
		if err := org.validate(); err != nil {
			return nil, err
		}
		if seen[org.Slug] {
			return nil, fmt.Errorf("duplicate organization slug %q", org.Slug)
		}
		seen[org.Slug] = true
	}

	return &cfg, nil
}

// Organization returns the configuration for slug, if present.
func (c *Config) Organization(slug string) (*Organization, bool) {
	for i := range c.Organizations {
		if c.Organizations[i].Slug == slug {
			return &c.Organizations[i], true
		}
	}
	return nil, false
}

func (o *Organization) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 10
	}
	if o.CaptivePortal.LoginForm.Method == "" {
		o.CaptivePortal.LoginForm.Method = "post"
	}
	if o.CaptivePortal.LoginForm.MacaddrParamName == "" {
		o.CaptivePortal.LoginForm.MacaddrParamName = "macaddr"
	}
	if o.CaptivePortal.LoginForm.UsernameField == "" {
		o.CaptivePortal.LoginForm.UsernameField = "username"
	}
	if o.CaptivePortal.LoginForm.PasswordField == "" {
		o.CaptivePortal.LoginForm.PasswordField = "password"
	}
	if o.CaptivePortal.LogoutForm.Method == "" {
		o.CaptivePortal.LogoutForm.Method = "post"
	}
	if o.CaptivePortal.LogoutForm.SessionIDField == "" {
		o.CaptivePortal.LogoutForm.SessionIDField = "id"
	}
}

func (o *Organization) validate() error {
	if err := validation.ValidateSlug(o.Slug); err != nil {
		return fmt.Errorf("organization %q: %w", o.Slug, err)
	}
	if o.Host == "" {
		return fmt.Errorf("organization %q: host is required", o.Slug)
	}
	if o.SecretKey == "" {
		return fmt.Errorf("organization %q: secret_key is required", o.Slug)
	}
	return nil
}

// RequestTimeout returns the upstream timeout as a duration.
func (o *Organization) RequestTimeout() time.Duration {
	return time.Duration(o.Timeout) * time.Second
}
