// Package config assembles pipeline configuration from CLI flags and an
// optional YAML overlay file: struct tags for the straightforward fields,
// custom (Un)MarshalYAML on enum-like types, CLI flags taking precedence
// over the file.
package config

import (
	"flag"
	"fmt"
	"os"

	goversion "github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// MinBlockSize and MaxBlockSize clamp the -b flag.
const (
	MinBlockSize = 512
	MaxBlockSize = 4194304

	DefaultCenterFreq  = 433920000
	DefaultSampleRate  = 48000
	DefaultBlockSize   = 262144
	DefaultLevelLimit  = 10000
	DefaultGain        = 0
	DefaultDecim       = 0
)

// SchemaVersion is the config file schema this binary understands.
// supportedConstraint is the range of file schema_versions accepted; a file
// outside that range is a configuration error: LoadFile warns and still
// applies the file rather than fail the process.
const SchemaVersion = "1.0.0"

var supportedConstraint = mustConstraint(">= 1.0.0, < 2.0.0")

func mustConstraint(s string) goversion.Constraints {
	c, err := goversion.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// FileConfig is the optional YAML overlay loaded via -config. Any field
// left zero-valued does not override the corresponding CLI-derived value.
type FileConfig struct {
	SchemaVersion string            `yaml:"schema_version,omitempty"`
	Protocols     ProtocolSelection `yaml:"protocols,omitempty"`
	Sinks         SinksConfig       `yaml:"sinks,omitempty"`
	MQTT          MQTTConfig        `yaml:"mqtt,omitempty"`
	Metrics       MetricsConfig     `yaml:"metrics,omitempty"`
	RTPSource     RTPConfig         `yaml:"rtp_source,omitempty"`
}

// ProtocolSelection chooses which wireless-thermometer families the
// pipeline demodulates for. The zero value, ProtocolAll, runs every
// registered protocol.
type ProtocolSelection int

const (
	ProtocolAll ProtocolSelection = iota
	ProtocolRubicsonOnly
	ProtocolPrologueOnly
)

// String returns the config-file spelling of a ProtocolSelection.
func (p ProtocolSelection) String() string {
	switch p {
	case ProtocolRubicsonOnly:
		return "rubicson"
	case ProtocolPrologueOnly:
		return "prologue"
	default:
		return "all"
	}
}

// MarshalYAML implements yaml.Marshaler for ProtocolSelection.
func (p ProtocolSelection) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for ProtocolSelection.
func (p *ProtocolSelection) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	sel, err := ProtocolSelectionFromString(s)
	if err != nil {
		return err
	}

	*p = sel
	return nil
}

// ProtocolSelectionFromString converts a config-file string to a
// ProtocolSelection. An empty string means ProtocolAll.
func ProtocolSelectionFromString(s string) (ProtocolSelection, error) {
	switch s {
	case "", "all":
		return ProtocolAll, nil
	case "rubicson":
		return ProtocolRubicsonOnly, nil
	case "prologue":
		return ProtocolPrologueOnly, nil
	default:
		return ProtocolAll, fmt.Errorf("config: unknown protocol selection %q", s)
	}
}

// SinksConfig selects which downstream event sinks are active.
type SinksConfig struct {
	Websocket WebsocketConfig `yaml:"websocket,omitempty"`
	MQTT      bool            `yaml:"mqtt,omitempty"`
}

// WebsocketConfig configures the live decode-event broadcaster.
type WebsocketConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty"`
}

// MQTTConfig configures the MQTT decode-event publisher.
type MQTTConfig struct {
	Broker   string `yaml:"broker,omitempty"`
	Topic    string `yaml:"topic,omitempty"`
	ClientID string `yaml:"client_id,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// RTPConfig configures the RTP-multicast IQ sample source.
type RTPConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Multicast string `yaml:"multicast_addr,omitempty"`
	SSRC      uint32 `yaml:"ssrc,omitempty"`
}

// CLI is every flag this binary accepts: the core decode parameters
// (-d, -f, -s, -g, -b, -l, -c, -n, -a, -r, -S) plus the operational
// additions (-config, -metrics-addr, -health-interval, -debug).
type CLI struct {
	Device       int
	FreqHz       uint32
	SampleRateHz int
	GainTenthsDB int
	BlockSize    int
	LevelLimit   int
	Decim        uint
	Budget       int64
	Analyze      bool
	ReadPath     string
	Sync         bool
	OutputPath   string
	Debug        bool

	ConfigPath     string
	MetricsAddr    string
	HealthInterval string
}

// Parse parses os.Args[1:] into a CLI, applying field clamps and defaults.
// Configuration errors (out-of-range block size, for instance) are
// corrected in place with a logged warning rather than rejected.
func Parse(args []string) (*CLI, error) {
	fs := flag.NewFlagSet("ook433decode", flag.ContinueOnError)

	c := &CLI{}
	fs.IntVar(&c.Device, "d", 0, "device index")
	freq := fs.Uint("f", DefaultCenterFreq, "center frequency in Hz")
	rate := fs.Int("s", DefaultSampleRate, "sample rate in Hz")
	fs.IntVar(&c.GainTenthsDB, "g", DefaultGain, "tuner gain in tenths of a dB (0 = auto)")
	fs.IntVar(&c.BlockSize, "b", DefaultBlockSize, "sample block size")
	fs.IntVar(&c.LevelLimit, "l", DefaultLevelLimit, "slicer level limit")
	decim := fs.Uint("c", DefaultDecim, "decimation exponent")
	fs.Int64Var(&c.Budget, "n", 0, "sample-pair budget (0 = unlimited)")
	fs.BoolVar(&c.Analyze, "a", false, "analysis mode (pulse report, no decode)")
	fs.StringVar(&c.ReadPath, "r", "", "read IQ from file instead of device")
	fs.BoolVar(&c.Sync, "S", false, "synchronous driver mode")
	fs.BoolVar(&c.Debug, "debug", false, "enable verbose per-block diagnostics")
	fs.StringVar(&c.ConfigPath, "config", "", "YAML config overlay path")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "Prometheus /metrics bind address (empty disables)")
	fs.StringVar(&c.HealthInterval, "health-interval", "30s", "resource-sampling period (0 disables)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c.FreqHz = uint32(*freq)
	c.SampleRateHz = *rate
	c.Decim = *decim

	if fs.NArg() > 0 {
		c.OutputPath = fs.Arg(0)
	}

	if c.BlockSize < MinBlockSize || c.BlockSize > MaxBlockSize {
		clamped := clampInt(c.BlockSize, MinBlockSize, MaxBlockSize)
		fmt.Fprintf(os.Stderr, "warning: block size %d out of range [%d, %d], clamping to %d\n",
			c.BlockSize, MinBlockSize, MaxBlockSize, clamped)
		c.BlockSize = clamped
	}

	return c, nil
}

// LoadFile loads and validates an optional YAML overlay. A missing or
// unreadable file is not an error when path is empty (no -config given);
// a schema_version outside supportedConstraint is a configuration error:
// logged as a warning, file contents still applied (older/newer minor
// schema revisions are expected to be compatible in practice).
func LoadFile(path string) (*FileConfig, error) {
	if path == "" {
		return &FileConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fc.SchemaVersion != "" {
		v, err := goversion.NewVersion(fc.SchemaVersion)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: config schema_version %q is not a valid version, ignoring\n", fc.SchemaVersion)
		} else if !supportedConstraint.Check(v) {
			fmt.Fprintf(os.Stderr, "warning: config schema_version %s is outside the supported range %s, proceeding anyway\n",
				fc.SchemaVersion, supportedConstraint)
		}
	}

	return &fc, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
