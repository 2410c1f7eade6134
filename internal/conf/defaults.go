package conf

import (
	"time"

	"github.com/spf13/viper"
)

const (
	defaultPort           = 8787
	defaultDataDir        = "data"
	defaultBodyLimit      = "15M"
	defaultMQTTTopic      = "campusguard/alerts"
	defaultMQTTClientID   = "campusguard-collector"
	defaultImageCacheTTL  = 10 * time.Minute
	defaultImageCacheSize = 64 << 20
	defaultImageItemSize  = 2 << 20
	defaultSendTimeout    = 10 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultShutdownWait   = 10 * time.Second
	defaultDiskSampleRate = 30 * time.Second
)

// setDefaults registers every default with viper so env vars can override
// keys that never appear in a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("main.name", "campusguard")
	v.SetDefault("main.loglevel", "info")
	v.SetDefault("main.timezone", "")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.bodylimit", defaultBodyLimit)
	v.SetDefault("server.corsorigins", []string{"*"})
	v.SetDefault("server.shutdowntimeout", defaultShutdownWait.String())
	v.SetDefault("server.ratelimit.enabled", false)
	v.SetDefault("server.ratelimit.requestspersecond", 20.0)
	v.SetDefault("server.ratelimit.burst", 40)
	v.SetDefault("server.ratelimit.expiresin", "3m")

	v.SetDefault("auth.token", DefaultToken)

	v.SetDefault("storage.datadir", defaultDataDir)
	v.SetDefault("storage.imagecachettl", defaultImageCacheTTL.String())
	v.SetDefault("storage.imagecachemaxbytes", defaultImageCacheSize)
	v.SetDefault("storage.imagecachemaxitembytes", defaultImageItemSize)

	v.SetDefault("alerting.enabled", true)

	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.sendtimeout", defaultSendTimeout.String())

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", defaultMQTTTopic)
	v.SetDefault("mqtt.clientid", defaultMQTTClientID)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.connecttimeout", defaultConnectTimeout.String())
	v.SetDefault("mqtt.publishtimeout", defaultPublishTimeout.String())

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.disksampleinterval", defaultDiskSampleRate.String())

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.samplerate", 1.0)
}

// legacyEnv maps the environment variable names used by earlier
// deployments onto settings keys.
var legacyEnv = map[string]string{
	"server.port":     "PORT",
	"auth.token":      "CAMPUSGUARD_TOKEN",
	"storage.datadir": "DATA_DIR",
	"sentry.dsn":      "SENTRY_DSN",
}
