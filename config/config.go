package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"hermannm.dev/enumnames"
	"hermannm.dev/wrap"
)

type Config struct {
	BaseConfig
	ClickHouse    ClickHouse
	Elasticsearch Elasticsearch
	CSV           CSV
}

type BaseConfig struct {
	// One of DEBUG, INFO, WARN, ERROR.
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	API      API
	Google   Google
	// Path to a YAML file of named query sets. Optional.
	QuerySetFile string        `env:"QUERY_SET_FILE" envDefault:""`
	ExportSink   SupportedSink `env:"EXPORT_SINK" envDefault:"none"`
}

type API struct {
	Port string `env:"API_PORT"`
}

type Google struct {
	ClientSecretsFile string `env:"GA_CLIENT_SECRETS_FILE"`
	TokenFile         string `env:"GA_TOKEN_FILE"`
	// View ID used by API requests that do not specify one. Optional.
	DefaultViewID string `env:"GA_DEFAULT_VIEW_ID" envDefault:""`
}

type ClickHouse struct {
	Address      string `env:"CLICKHOUSE_ADDRESS"`
	DatabaseName string `env:"CLICKHOUSE_DB_NAME"`
	Username     string `env:"CLICKHOUSE_USERNAME"`
	Password     string `env:"CLICKHOUSE_PASSWORD"`
	Debug        bool   `env:"CLICKHOUSE_DEBUG_ENABLED" envDefault:"false"`
}

type Elasticsearch struct {
	Address string `env:"ELASTICSEARCH_ADDRESS"`
	Debug   bool   `env:"ELASTICSEARCH_DEBUG_ENABLED" envDefault:"false"`
}

type CSV struct {
	// Directory that CSV files are written to. Created if it does not exist.
	OutputDir string `env:"CSV_OUTPUT_DIR"`
	// Field delimiter for new files. Existing files keep the delimiter they were written with.
	Delimiter string `env:"CSV_DELIMITER" envDefault:","`
}

type SupportedSink uint8

const (
	SinkNone SupportedSink = iota + 1
	SinkClickHouse
	SinkElasticsearch
	SinkCSV
)

var sinkNames = enumnames.NewMap(map[SupportedSink]string{
	SinkNone:          "none",
	SinkClickHouse:    "clickhouse",
	SinkElasticsearch: "elasticsearch",
	SinkCSV:           "csv",
})

func ParseSink(name string) (SupportedSink, bool) {
	return sinkNames.EnumValueFromName(strings.ToLower(name))
}

func (sink SupportedSink) IsValid() bool {
	return sinkNames.ContainsEnumValue(sink)
}

func (sink SupportedSink) String() string {
	return sinkNames.GetNameOrFallback(sink, "INVALID_SINK")
}

func (sink *SupportedSink) UnmarshalText(text []byte) error {
	parsed, ok := ParseSink(string(text))
	if !ok {
		return fmt.Errorf(
			"unsupported sink '%s' (must be one of '%s', '%s', '%s', '%s')",
			text, SinkNone, SinkClickHouse, SinkElasticsearch, SinkCSV,
		)
	}
	*sink = parsed
	return nil
}

// ReadFromEnv loads variables from a .env file in the working directory if one exists, then parses
// the config from the environment. Sink config is only parsed for the selected EXPORT_SINK.
func ReadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, wrap.Error(err, "failed to load .env file")
	}

	return Parse(env.Options{})
}

// Parse parses the config from the given env options, which may set Environment to parse from a
// map instead of the process environment.
func Parse(options env.Options) (Config, error) {
	options.RequiredIfNoDef = true

	var config Config

	if err := env.ParseWithOptions(&config.BaseConfig, options); err != nil {
		return Config{}, err
	}

	switch config.ExportSink {
	case SinkNone:
	case SinkClickHouse:
		if err := env.ParseWithOptions(&config.ClickHouse, options); err != nil {
			return Config{}, wrap.Error(err, "invalid ClickHouse config")
		}
	case SinkElasticsearch:
		if err := env.ParseWithOptions(&config.Elasticsearch, options); err != nil {
			return Config{}, wrap.Error(err, "invalid Elasticsearch config")
		}
	case SinkCSV:
		if err := env.ParseWithOptions(&config.CSV, options); err != nil {
			return Config{}, wrap.Error(err, "invalid CSV config")
		}
	default:
		return Config{}, fmt.Errorf("unsupported value '%s' for EXPORT_SINK in env", config.ExportSink)
	}

	return config, nil
}
