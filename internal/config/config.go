package config

import (
	"fmt"
	"time"
)

// Provider kinds recognized by the registry. Providers are constructed once
// at startup from these enumerated kinds; there is no runtime discovery.
const (
	ProviderIdle   = "idle"
	ProviderRemote = "remote"
	ProviderLocal  = "local"
)

// Fail-safe targets applied once the missed-action threshold trips.
const (
	FailsafeIdle = "idle"
	FailsafeHold = "hold"
)

// Config holds all runtime parameters for the hub daemon. Zero values are
// replaced by defaults in Validate.
type Config struct {
	Hub       HubConfig                 `json:"hub" yaml:"hub" toml:"hub"`
	HTTP      HTTPConfig                `json:"http" yaml:"http" toml:"http"`
	Loop      LoopConfig                `json:"loop" yaml:"loop" toml:"loop"`
	Filter    FilterConfig              `json:"filter" yaml:"filter" toml:"filter"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers" toml:"providers"`
	// AIProvider names the entry in Providers that serves `infer` mode.
	AIProvider string       `json:"ai_provider" yaml:"ai_provider" toml:"ai_provider"`
	Cameras    CameraConfig `json:"cameras" yaml:"cameras" toml:"cameras"`
	Data       DataConfig   `json:"data" yaml:"data" toml:"data"`
	Log        LogConfig    `json:"log" yaml:"log" toml:"log"`
}

// HubConfig configures the command endpoint.
type HubConfig struct {
	Address string `json:"address" yaml:"address" toml:"address"`
	Token   string `json:"token" yaml:"token" toml:"token"`
}

// HTTPConfig configures the observability/dashboard surface.
type HTTPConfig struct {
	Address        string   `json:"address" yaml:"address" toml:"address"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
}

// LoopConfig configures the control loop.
type LoopConfig struct {
	RateHZ           float64 `json:"rate_hz" yaml:"rate_hz" toml:"rate_hz"`
	MaxMissedActions int     `json:"max_missed_actions" yaml:"max_missed_actions" toml:"max_missed_actions"`
	Failsafe         string  `json:"failsafe" yaml:"failsafe" toml:"failsafe"`
}

// Period returns the tick period derived from RateHZ.
func (c LoopConfig) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.RateHZ)
}

// FilterConfig configures action smoothing.
type FilterConfig struct {
	Window int     `json:"window" yaml:"window" toml:"window"`
	Alpha  float64 `json:"alpha" yaml:"alpha" toml:"alpha"`
}

// ProviderConfig describes one command source. Kind selects the variant;
// only the fields relevant to that kind are read.
type ProviderConfig struct {
	Kind string `json:"kind" yaml:"kind" toml:"kind"`
	// Remote fields.
	Address   string `json:"address" yaml:"address" toml:"address"`
	TimeoutMS int    `json:"timeout_ms" yaml:"timeout_ms" toml:"timeout_ms"`
	Token     string `json:"token" yaml:"token" toml:"token"`
	// Local field: named in-process device registered by the binary.
	Device string `json:"device" yaml:"device" toml:"device"`
}

// Timeout returns the per-call bound for this provider.
func (c ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// CameraConfig configures the streaming pipeline.
type CameraConfig struct {
	// Address is the TCP publish endpoint; empty disables streaming.
	Address string               `json:"address" yaml:"address" toml:"address"`
	Quality int                  `json:"quality" yaml:"quality" toml:"quality"`
	Sources []CameraSourceConfig `json:"sources" yaml:"sources" toml:"sources"`
}

// CameraSourceConfig configures one camera source. Name must match a frame
// key produced by the hardware layer.
type CameraSourceConfig struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	// FPS caps the publish rate for this source; 0 means every frame.
	FPS float64 `json:"fps" yaml:"fps" toml:"fps"`
	// Quality overrides CameraConfig.Quality when non-zero.
	Quality int `json:"quality" yaml:"quality" toml:"quality"`
	// MaxWidth downscales frames wider than this; 0 keeps full size.
	MaxWidth int `json:"max_width" yaml:"max_width" toml:"max_width"`
}

// DataConfig configures data-recording sessions.
type DataConfig struct {
	Dir string `json:"dir" yaml:"dir" toml:"dir"`
	// Provider names the teleop entry that drives the robot while recording.
	Provider string `json:"provider" yaml:"provider" toml:"provider"`
}

// LogConfig configures process logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Validate applies defaults and rejects values outside the recognized sets.
func (c *Config) Validate() error {
	if c.Hub.Address == "" {
		c.Hub.Address = ":5555"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8090"
	}
	if c.Loop.RateHZ <= 0 {
		c.Loop.RateHZ = 30
	}
	if c.Loop.MaxMissedActions <= 0 {
		c.Loop.MaxMissedActions = 3
	}
	if c.Loop.Failsafe == "" {
		c.Loop.Failsafe = FailsafeIdle
	}
	if c.Loop.Failsafe != FailsafeIdle && c.Loop.Failsafe != FailsafeHold {
		return fmt.Errorf("loop.failsafe: unknown target %q", c.Loop.Failsafe)
	}
	if c.Filter.Window <= 0 {
		c.Filter.Window = 5
	}
	if c.Filter.Alpha == 0 {
		c.Filter.Alpha = 0.3
	}
	if c.Filter.Alpha < 0 || c.Filter.Alpha > 1 {
		return fmt.Errorf("filter.alpha: %v outside [0,1]", c.Filter.Alpha)
	}
	if c.Cameras.Quality <= 0 {
		c.Cameras.Quality = 80
	}
	if c.Cameras.Quality > 100 {
		return fmt.Errorf("cameras.quality: %d outside (0,100]", c.Cameras.Quality)
	}
	seen := make(map[string]struct{}, len(c.Cameras.Sources))
	for i, src := range c.Cameras.Sources {
		if src.Name == "" {
			return fmt.Errorf("cameras.sources[%d]: name is required", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("cameras.sources: duplicate name %q", src.Name)
		}
		seen[src.Name] = struct{}{}
	}
	for name, p := range c.Providers {
		switch p.Kind {
		case ProviderIdle, ProviderLocal:
		case ProviderRemote:
			if p.Address == "" {
				return fmt.Errorf("providers.%s: remote provider requires address", name)
			}
			if p.TimeoutMS <= 0 {
				p.TimeoutMS = 1500
				c.Providers[name] = p
			}
		case "":
			return fmt.Errorf("providers.%s: kind is required", name)
		default:
			return fmt.Errorf("providers.%s: unknown kind %q", name, p.Kind)
		}
	}
	if c.AIProvider != "" {
		if _, ok := c.Providers[c.AIProvider]; !ok {
			return fmt.Errorf("ai_provider: %q not present in providers", c.AIProvider)
		}
	}
	if c.Data.Provider != "" {
		if _, ok := c.Providers[c.Data.Provider]; !ok {
			return fmt.Errorf("data.provider: %q not present in providers", c.Data.Provider)
		}
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}
	dir, err := ExpandHome(c.Data.Dir)
	if err != nil {
		return fmt.Errorf("data.dir: %w", err)
	}
	c.Data.Dir = dir
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	return nil
}
