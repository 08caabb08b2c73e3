package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "./config.yaml"

	defaultStationsFile        = "lista.txt"
	defaultReferencesFile      = "cotas_referencia.txt"
	defaultOutputDir           = "Graficos_Saida"
	defaultTimezone            = "America/Sao_Paulo"
	defaultBaseURL             = "https://telemetriaws1.ana.gov.br/ServiceANA.asmx"
	defaultUserAgent           = "cotas/1.0"
	defaultInventoryTimeout    = 30 * time.Second
	defaultMeasurementsTimeout = 60 * time.Second
	defaultPastDays            = 7
	defaultLookaheadDays       = 1
	defaultLogFile             = "log_execucao_cotas.txt"
	defaultLogMaxSizeMB        = 5
	defaultLogLevel            = "info"
	defaultChartWidthIn        = 10
	defaultChartHeightIn       = 6
	defaultRedisStream         = "cotas_status"
)

type ANA struct {
	BaseURL             string        `yaml:"base_url"`
	UserAgent           string        `yaml:"user_agent"`
	InventoryTimeout    time.Duration `yaml:"inventory_timeout"`
	MeasurementsTimeout time.Duration `yaml:"measurements_timeout"`
	PastDays            int           `yaml:"past_days"`
	LookaheadDays       int           `yaml:"lookahead_days"`
}

type Log struct {
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	Level     string `yaml:"level"`
	Console   bool   `yaml:"console"`
}

type Chart struct {
	WidthIn  float64 `yaml:"width_in"`
	HeightIn float64 `yaml:"height_in"`
}

type Metrics struct {
	// Textfile is where the run's metrics are written for the node_exporter
	// textfile collector. Empty disables the export.
	Textfile string `yaml:"textfile"`
}

// Config - everything the run needs, loaded once in main and passed down
type Config struct {
	StationsFile   string  `yaml:"stations_file"`
	ReferencesFile string  `yaml:"references_file"`
	OutputDir      string  `yaml:"output_dir"`
	Timezone       string  `yaml:"timezone"`
	ANA            ANA     `yaml:"ana"`
	Log            Log     `yaml:"log"`
	Chart          Chart   `yaml:"chart"`
	Metrics        Metrics `yaml:"metrics"`
	Redis          Redis   `yaml:"redis"`
	MQTT           MQTT    `yaml:"mqtt"`
}

// Defaults returns the configuration used when no config file exists
func Defaults() *Config {
	return &Config{
		StationsFile:   defaultStationsFile,
		ReferencesFile: defaultReferencesFile,
		OutputDir:      defaultOutputDir,
		Timezone:       defaultTimezone,
		ANA: ANA{
			BaseURL:             defaultBaseURL,
			UserAgent:           defaultUserAgent,
			InventoryTimeout:    defaultInventoryTimeout,
			MeasurementsTimeout: defaultMeasurementsTimeout,
			PastDays:            defaultPastDays,
			LookaheadDays:       defaultLookaheadDays,
		},
		Log: Log{
			File:      defaultLogFile,
			MaxSizeMB: defaultLogMaxSizeMB,
			Level:     defaultLogLevel,
		},
		Chart: Chart{
			WidthIn:  defaultChartWidthIn,
			HeightIn: defaultChartHeightIn,
		},
		Redis: Redis{
			Stream: defaultRedisStream,
		},
		MQTT: MQTT{
			ClientID:       defaultMQTTClientID,
			TopicPrefix:    defaultMQTTTopicPrefix,
			ConnectTimeout: defaultMQTTConnectTimeout,
		},
	}
}

// Load reads .env (if any), the YAML file at configPath (if any) on top of the
// defaults, then applies environment overrides and validates the result.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Defaults()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the config file location, COTAS_CONFIG or DefaultPath
func Path() string {
	return getEnv("COTAS_CONFIG", DefaultPath)
}

// Location resolves the configured timezone. Load has already rejected an
// unknown one; UTC is only returned for a Config built by hand.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) applyEnv() {
	c.StationsFile = getEnv("COTAS_STATIONS_FILE", c.StationsFile)
	c.ReferencesFile = getEnv("COTAS_REFERENCES_FILE", c.ReferencesFile)
	c.OutputDir = getEnv("COTAS_OUTPUT_DIR", c.OutputDir)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.ANA.BaseURL = getEnv("ANA_BASE_URL", c.ANA.BaseURL)
	c.Metrics.Textfile = getEnv("METRICS_TEXTFILE", c.Metrics.Textfile)
	c.Redis = c.Redis.withEnv()
	c.MQTT = c.MQTT.withEnv()
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.StationsFile) == "" {
		return fmt.Errorf("stations_file cannot be empty")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if strings.TrimSpace(c.ANA.BaseURL) == "" {
		return fmt.Errorf("ana.base_url cannot be empty")
	}
	if c.ANA.InventoryTimeout <= 0 || c.ANA.MeasurementsTimeout <= 0 {
		return fmt.Errorf("ana timeouts must be positive")
	}
	if c.ANA.PastDays <= 0 {
		return fmt.Errorf("ana.past_days must be positive, got %d", c.ANA.PastDays)
	}
	if c.ANA.LookaheadDays < 0 {
		return fmt.Errorf("ana.lookahead_days cannot be negative, got %d", c.ANA.LookaheadDays)
	}
	if strings.TrimSpace(c.Log.File) == "" {
		return fmt.Errorf("log.file cannot be empty")
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be positive, got %d", c.Log.MaxSizeMB)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Chart.WidthIn <= 0 || c.Chart.HeightIn <= 0 {
		return fmt.Errorf("chart dimensions must be positive")
	}
	return nil
}
