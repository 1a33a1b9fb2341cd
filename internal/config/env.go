package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvHome       = "GREENREPORT_HOME"
	EnvProjectDir = "GREENREPORT_PROJECT_DIR"
	EnvHost       = "GREENREPORT_HOST"
	EnvPort       = "GREENREPORT_PORT"
	EnvPortLegacy = "PORT"
	EnvFactor     = "GREENREPORT_FACTOR"
	EnvModel      = "GREENREPORT_MODEL"
	EnvLogLevel   = "GREENREPORT_LOG_LEVEL"
	EnvLogFormat  = "GREENREPORT_LOG_FORMAT"
	EnvLogFile    = "GREENREPORT_LOG_FILE"
	EnvArchiveDir = "GREENREPORT_ARCHIVE_DIR"

	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvInfluxURL     = "INFLUXDB_URL"
	EnvInfluxToken   = "INFLUXDB_TOKEN"
	EnvInfluxOrg     = "INFLUXDB_ORG"
	EnvInfluxBucket  = "INFLUXDB_BUCKET"
	EnvKafkaBrokers  = "KAFKA_BROKERS"
	EnvKafkaTopic    = "KAFKA_TOPIC"
	EnvKafkaGroup    = "KAFKA_GROUP_ID"
	EnvFlushInterval = "KAFKA_FLUSH_INTERVAL"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped. With no arguments ".env" in the working directory is
// tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides cfg with any variable lookup reports as set. Values that
// fail to parse are ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str(EnvHost, &cfg.Server.Host)
	for _, key := range []string{EnvPortLegacy, EnvPort} {
		if v, ok := lookup(key); ok {
			if port, err := strconv.Atoi(v); err == nil {
				cfg.Server.Port = port
			}
		}
	}

	str(EnvFactor, &cfg.Carbon.Factor)
	str(EnvModel, &cfg.Model.Name)
	str(EnvAnthropicKey, &cfg.Model.APIKey)

	str(EnvLogLevel, &cfg.Logging.Level)
	str(EnvLogFormat, &cfg.Logging.Format)
	str(EnvLogFile, &cfg.Logging.File)
	str(EnvArchiveDir, &cfg.Archive.Directory)

	str(EnvDatabaseURL, &cfg.Database.URL)
	str(EnvInfluxURL, &cfg.Influx.URL)
	str(EnvInfluxToken, &cfg.Influx.Token)
	str(EnvInfluxOrg, &cfg.Influx.Org)
	str(EnvInfluxBucket, &cfg.Influx.Bucket)

	if v, ok := lookup(EnvKafkaBrokers); ok && v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	str(EnvKafkaTopic, &cfg.Kafka.Topic)
	str(EnvKafkaGroup, &cfg.Kafka.GroupID)
	if v, ok := lookup(EnvFlushInterval); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Kafka.FlushInterval = d
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
