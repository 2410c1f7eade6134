// Package conf holds collector settings and loads them from defaults, an
// optional YAML file and the environment.
package conf

import "path/filepath"

// DefaultToken is the shared secret used when none is configured. It exists
// so a fresh install works out of the box and must be replaced in production.
const DefaultToken = "demo-token"

// TokenHeader is the request header carrying the shared secret.
const TokenHeader = "x-campusguard-token"

// Settings is the complete collector configuration.
type Settings struct {
	Main struct {
		Name     string `mapstructure:"name" yaml:"name"`
		LogLevel string `mapstructure:"loglevel" yaml:"loglevel"`
		Timezone string `mapstructure:"timezone" yaml:"timezone"`
	} `mapstructure:"main" yaml:"main"`

	Server ServerSettings `mapstructure:"server" yaml:"server"`

	Auth struct {
		Token string `mapstructure:"token" yaml:"token"`
	} `mapstructure:"auth" yaml:"auth"`

	Storage struct {
		DataDir                string   `mapstructure:"datadir" yaml:"datadir"`
		ImageCacheTTL          Duration `mapstructure:"imagecachettl" yaml:"imagecachettl"`
		ImageCacheMaxBytes     int64    `mapstructure:"imagecachemaxbytes" yaml:"imagecachemaxbytes"`
		ImageCacheMaxItemBytes int64    `mapstructure:"imagecachemaxitembytes" yaml:"imagecachemaxitembytes"`
	} `mapstructure:"storage" yaml:"storage"`

	Alerting struct {
		Enabled bool               `mapstructure:"enabled" yaml:"enabled"`
		Rules   []NotifyRuleConfig `mapstructure:"rules" yaml:"rules"`
	} `mapstructure:"alerting" yaml:"alerting"`

	Notification struct {
		URLs        []string `mapstructure:"urls" yaml:"urls"`
		SendTimeout Duration `mapstructure:"sendtimeout" yaml:"sendtimeout"`
	} `mapstructure:"notification" yaml:"notification"`

	MQTT MQTTSettings `mapstructure:"mqtt" yaml:"mqtt"`

	Metrics struct {
		Enabled            bool     `mapstructure:"enabled" yaml:"enabled"`
		DiskSampleInterval Duration `mapstructure:"disksampleinterval" yaml:"disksampleinterval"`
	} `mapstructure:"metrics" yaml:"metrics"`

	Sentry struct {
		Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
		DSN         string  `mapstructure:"dsn" yaml:"dsn"`
		Environment string  `mapstructure:"environment" yaml:"environment"`
		SampleRate  float64 `mapstructure:"samplerate" yaml:"samplerate"`
	} `mapstructure:"sentry" yaml:"sentry"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host            string   `mapstructure:"host" yaml:"host"`
	Port            int      `mapstructure:"port" yaml:"port"`
	BodyLimit       string   `mapstructure:"bodylimit" yaml:"bodylimit"`
	CORSOrigins     []string `mapstructure:"corsorigins" yaml:"corsorigins"`
	ShutdownTimeout Duration `mapstructure:"shutdowntimeout" yaml:"shutdowntimeout"`
	RateLimit       struct {
		Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
		RequestsPerSecond float64  `mapstructure:"requestspersecond" yaml:"requestspersecond"`
		Burst             int      `mapstructure:"burst" yaml:"burst"`
		ExpiresIn         Duration `mapstructure:"expiresin" yaml:"expiresin"`
	} `mapstructure:"ratelimit" yaml:"ratelimit"`
}

// MQTTSettings configures alert forwarding to a broker.
type MQTTSettings struct {
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
	Broker         string   `mapstructure:"broker" yaml:"broker"`
	Topic          string   `mapstructure:"topic" yaml:"topic"`
	ClientID       string   `mapstructure:"clientid" yaml:"clientid"`
	Username       string   `mapstructure:"username" yaml:"username"`
	Password       string   `mapstructure:"password" yaml:"password"`
	QoS            int      `mapstructure:"qos" yaml:"qos"`
	ConnectTimeout Duration `mapstructure:"connecttimeout" yaml:"connecttimeout"`
	PublishTimeout Duration `mapstructure:"publishtimeout" yaml:"publishtimeout"`
}

// NotifyRuleConfig is the configuration form of a notification rule.
type NotifyRuleConfig struct {
	Name       string            `mapstructure:"name" yaml:"name"`
	Conditions []ConditionConfig `mapstructure:"conditions" yaml:"conditions"`
	Cooldown   Duration          `mapstructure:"cooldown" yaml:"cooldown"`
	Title      string            `mapstructure:"title" yaml:"title"`
	Message    string            `mapstructure:"message" yaml:"message"`

	// MinCount and Window turn the rule into a burst rule: it fires only once
	// MinCount matching alerts arrived within Window.
	MinCount int      `mapstructure:"mincount" yaml:"mincount,omitempty"`
	Window   Duration `mapstructure:"window" yaml:"window,omitempty"`
}

// ConditionConfig is one property comparison inside a rule.
type ConditionConfig struct {
	Property string `mapstructure:"property" yaml:"property"`
	Operator string `mapstructure:"operator" yaml:"operator"`
	Value    string `mapstructure:"value" yaml:"value"`
}

// ImageDir returns the directory holding stored alert images.
func (s *Settings) ImageDir() string {
	return filepath.Join(s.Storage.DataDir, "images")
}

// UsingDefaultToken reports whether the shared secret is still the
// out-of-the-box value.
func (s *Settings) UsingDefaultToken() bool {
	return s.Auth.Token == DefaultToken
}

// Redacted returns a copy safe for printing: secrets are masked.
func (s *Settings) Redacted() Settings {
	out := *s
	out.Alerting.Rules = append([]NotifyRuleConfig(nil), s.Alerting.Rules...)
	out.Notification.URLs = nil
	for range s.Notification.URLs {
		out.Notification.URLs = append(out.Notification.URLs, redactedValue)
	}
	if out.Auth.Token != "" {
		out.Auth.Token = redactedValue
	}
	if out.MQTT.Password != "" {
		out.MQTT.Password = redactedValue
	}
	if out.Sentry.DSN != "" {
		out.Sentry.DSN = redactedValue
	}
	return out
}

const redactedValue = "[redacted]"
