package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"voxlink/internal/logging"
)

const envPrefix = "VOXLINK"

const (
	KeyURL              = "url"
	KeyTargetSampleRate = "target_sample_rate"
	KeyGain             = "gain"
	KeyNoiseThreshold   = "noise_threshold"
	KeyChunkSize        = "chunk_size"
	KeyReconnectDelayMS = "reconnect_delay_ms"
	KeyRecorderCommand  = "audio.recorder_command"
	KeyInputFormat      = "audio.input_format"
	KeyInputDevice      = "audio.input_device"
	KeyCaptureRate      = "audio.sample_rate"
	KeyAudioFile        = "audio.file"
	KeyRealtime         = "audio.realtime"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyMetricsAddr      = "metrics.addr"
)

const (
	defaultTargetSampleRate = 16000
	defaultCaptureRate      = 48000
	defaultChunkSize        = 4096
	minChunkSize            = 256
	defaultReconnectDelayMS = 3000
)

// Config stores runtime configuration for the streaming client.
type Config struct {
	Stream  StreamConfig
	Audio   AudioConfig
	Log     LogConfig
	Metrics MetricsConfig
}

type StreamConfig struct {
	URL              string        `validate:"required,url"`
	TargetSampleRate int           `validate:"gt=0"`
	Gain             float64       `validate:"gt=0"`
	NoiseThreshold   float64       `validate:"gte=0,lt=1"`
	ChunkSize        int           `validate:"gte=256"`
	ReconnectDelay   time.Duration `validate:"gt=0"`
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	File            string
	Realtime        bool
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Addr string `validate:"omitempty,hostname_port"`
}

// LoadOptions selects optional configuration sources.
type LoadOptions struct {
	// ConfigFile is a YAML, JSON or TOML file read before env and flags.
	ConfigFile string
	// EnvFile is loaded into the process environment. When empty, ./.env
	// is loaded if present.
	EnvFile string
	// Flags maps config keys to command line flags that override them.
	Flags    *pflag.FlagSet
	FlagKeys map[string]string
}

// Load resolves configuration from flags, environment, an optional config
// file and defaults, in that order of precedence.
func Load(opts LoadOptions) (Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		for key, name := range opts.FlagKeys {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("failed to bind flag %q: %w", name, err)
			}
		}
	}

	cfg := Config{
		Stream: StreamConfig{
			URL:              strings.TrimSpace(v.GetString(KeyURL)),
			TargetSampleRate: v.GetInt(KeyTargetSampleRate),
			Gain:             v.GetFloat64(KeyGain),
			NoiseThreshold:   v.GetFloat64(KeyNoiseThreshold),
			ChunkSize:        v.GetInt(KeyChunkSize),
			ReconnectDelay:   time.Duration(v.GetInt(KeyReconnectDelayMS)) * time.Millisecond,
		},
		Audio: AudioConfig{
			RecorderCommand: strings.TrimSpace(v.GetString(KeyRecorderCommand)),
			InputFormat:     strings.TrimSpace(v.GetString(KeyInputFormat)),
			InputDevice:     strings.TrimSpace(v.GetString(KeyInputDevice)),
			SampleRate:      v.GetInt(KeyCaptureRate),
			File:            strings.TrimSpace(v.GetString(KeyAudioFile)),
			Realtime:        v.GetBool(KeyRealtime),
		},
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
		},
		Metrics: MetricsConfig{
			Addr: strings.TrimSpace(v.GetString(KeyMetricsAddr)),
		},
	}
	cfg.applyFallbacks()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyURL, "")
	v.SetDefault(KeyTargetSampleRate, defaultTargetSampleRate)
	v.SetDefault(KeyGain, 1.0)
	v.SetDefault(KeyNoiseThreshold, 0.0)
	v.SetDefault(KeyChunkSize, defaultChunkSize)
	v.SetDefault(KeyReconnectDelayMS, defaultReconnectDelayMS)
	v.SetDefault(KeyRecorderCommand, "ffmpeg")
	v.SetDefault(KeyInputFormat, "pulse")
	v.SetDefault(KeyInputDevice, "default")
	v.SetDefault(KeyCaptureRate, defaultCaptureRate)
	v.SetDefault(KeyAudioFile, "")
	v.SetDefault(KeyRealtime, true)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, logging.FormatConsole)
	v.SetDefault(KeyMetricsAddr, "")
}

// applyFallbacks replaces unparseable or out-of-range numeric values with
// their defaults.
func (c *Config) applyFallbacks() {
	if c.Stream.TargetSampleRate <= 0 {
		c.Stream.TargetSampleRate = defaultTargetSampleRate
	}
	if c.Stream.Gain <= 0 {
		c.Stream.Gain = 1
	}
	if c.Stream.NoiseThreshold < 0 {
		c.Stream.NoiseThreshold = 0
	}
	if c.Stream.ChunkSize < minChunkSize {
		c.Stream.ChunkSize = defaultChunkSize
	}
	if c.Stream.ReconnectDelay <= 0 {
		c.Stream.ReconnectDelay = defaultReconnectDelayMS * time.Millisecond
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultCaptureRate
	}
	if c.Audio.RecorderCommand == "" {
		c.Audio.RecorderCommand = "ffmpeg"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = logging.FormatConsole
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate performs validation of the configuration.
func (c Config) Validate() error {
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}
	if err := validate.Struct(c.Metrics); err != nil {
		return fmt.Errorf("metrics config: %w", fieldErrors(err))
	}
	if err := (logging.Config{Level: c.Log.Level, Format: c.Log.Format}).Validate(); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

// Validate validates streaming configuration.
func (s StreamConfig) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fieldErrors(err)
	}
	parsed, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return fmt.Errorf("url scheme must be ws or wss, got %q", parsed.Scheme)
	}
	return nil
}

// fieldErrors flattens validator errors into one "field: problem" list.
func fieldErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, e.Field()+": "+describe(e))
	}
	return errors.New(strings.Join(messages, "; "))
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "hostname_port":
		return "must be host:port"
	case "gt", "gte", "lt", "lte":
		return "must be " + e.Tag() + " " + e.Param()
	default:
		return "is invalid"
	}
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("failed to load env file .env: %w", err)
		}
	}
	return nil
}
