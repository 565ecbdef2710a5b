package config

import (
	"github.com/spf13/viper"

	"github.com/sweetshark/capture-sidecar/internal/logging"
)

var log = logging.L("config")

// Config holds the sidecar's ambient configuration. None of these values
// affect the protocol the host speaks to the sidecar over stdio; they only
// tune logging, the frame queue, the binary egress port, the target
// liveness poll, and the WASAPI activation timeout.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	FrameQueueCapacity  int `mapstructure:"frame_queue_capacity"`
	BinaryEgressPort    int `mapstructure:"binary_egress_port"`
	LivenessPollMs      int `mapstructure:"liveness_poll_ms"`
	ActivationTimeoutMs int `mapstructure:"activation_timeout_ms"`
}

// Default returns the configuration used when no file or env var overrides it.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",

		FrameQueueCapacity:  100,
		BinaryEgressPort:    0,
		LivenessPollMs:      300,
		ActivationTimeoutMs: 5000,
	}
}

// Load reads configuration from cfgFile (if non-empty), then from
// SIDECAR_-prefixed environment variables, layered on top of Default().
// When cfgFile is empty, a missing sidecar.yaml in the working directory
// is not an error: the sidecar is usually invoked with none at all. An
// explicitly named file that cannot be read is an error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sidecar")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SIDECAR")
	// Unmarshal only sees keys viper knows about, so each key is bound
	// to its SIDECAR_ variable explicitly.
	for _, key := range []string{"log_level", "log_format", "log_file", "frame_queue_capacity", "binary_egress_port", "liveness_poll_ms", "activation_timeout_ms"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}

	return cfg, nil
}
