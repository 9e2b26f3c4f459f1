package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-kit/log/level"

	"github.com/ninedraft/gemcore/gemini"
	"github.com/ninedraft/gemcore/gemini/tofu"
)

type config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRedirects   int
	MaxTextSize    int
	MaxBodySize    int64
	Trust          string
	Pins           map[string]tofu.Fingerprint
	LogLevel       string
	Parallel       int
	JSON           bool
}

const (
	trustAcceptAll = "accept-all"
	trustHostname  = "hostname"
	trustTOFU      = "tofu"
)

func defaultConfig() config {
	return config{
		ConnectTimeout: gemini.DefaultConnectTimeout,
		ReadTimeout:    gemini.DefaultReadTimeout,
		MaxRedirects:   gemini.DefaultMaxRedirects,
		MaxTextSize:    gemini.DefaultMaxTextSize,
		MaxBodySize:    64 << 20,
		Trust:          trustAcceptAll,
		LogLevel:       "warn",
		Parallel:       4,
	}
}

type fileConfig struct {
	ConnectTimeout string            `toml:"connect_timeout"`
	ReadTimeout    string            `toml:"read_timeout"`
	MaxRedirects   int               `toml:"max_redirects"`
	MaxTextSize    int               `toml:"max_text_size"`
	MaxBodySize    int64             `toml:"max_body_size"`
	Trust          string            `toml:"trust"`
	Pins           map[string]string `toml:"pins"`
	LogLevel       string            `toml:"log_level"`
	Parallel       int               `toml:"parallel"`
	JSON           bool              `toml:"json"`
}

// loadConfig applies keys defined in the TOML file at path on top of cfg.
func loadConfig(path string, cfg config) (config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load gemfetch config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("load gemfetch config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return config{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.ConnectTimeout = d
	}

	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return config{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}

	if meta.IsDefined("max_redirects") {
		cfg.MaxRedirects = raw.MaxRedirects
	}

	if meta.IsDefined("max_text_size") {
		cfg.MaxTextSize = raw.MaxTextSize
	}

	if meta.IsDefined("max_body_size") {
		cfg.MaxBodySize = raw.MaxBodySize
	}

	if meta.IsDefined("trust") {
		cfg.Trust = strings.TrimSpace(raw.Trust)
	}

	if meta.IsDefined("pins") {
		cfg.Pins = make(map[string]tofu.Fingerprint, len(raw.Pins))
		for host, hex := range raw.Pins {
			fp, err := tofu.ParseFingerprint(strings.TrimSpace(hex))
			if err != nil {
				return config{}, fmt.Errorf("parse pin of %s: %w", host, err)
			}
			cfg.Pins[host] = fp
		}
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("parallel") {
		cfg.Parallel = raw.Parallel
	}

	if meta.IsDefined("json") {
		cfg.JSON = raw.JSON
	}

	return cfg, cfg.validate()
}

func (cfg config) validate() error {
	if _, err := cfg.trustPolicy(); err != nil {
		return err
	}
	if _, err := cfg.levelFilter(); err != nil {
		return err
	}
	if cfg.Parallel < 1 {
		return fmt.Errorf("parallel must be positive, got %d", cfg.Parallel)
	}
	return nil
}

func (cfg config) trustPolicy() (gemini.TrustPolicy, error) {
	switch cfg.Trust {
	case trustAcceptAll:
		return gemini.AcceptAll, nil
	case trustHostname:
		return gemini.VerifyHostname, nil
	case trustTOFU:
		var policy = &tofu.Policy{}
		for host, fp := range cfg.Pins {
			policy.Pin(host, fp)
		}
		return policy, nil
	default:
		return nil, fmt.Errorf("unknown trust policy %q: expected %s, %s or %s",
			cfg.Trust, trustAcceptAll, trustHostname, trustTOFU)
	}
}

func (cfg config) levelFilter() (level.Option, error) {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		return level.AllowDebug(), nil
	case "info":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	case "none":
		return level.AllowNone(), nil
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
}
