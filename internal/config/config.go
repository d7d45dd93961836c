package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dltrophy/simulator/internal/trophy"
)

// Defaults for fields left out of the config file.
const (
	DefaultUDPPort         = 3413
	DefaultHTTPListen      = ":8080"
	DefaultFPS             = 60
	DefaultPollTimeout     = time.Millisecond
	DefaultRealtimeTimeout = 2500 * time.Millisecond
	DefaultStatsInterval   = time.Minute
	DefaultForwardPort     = 21324
	DefaultSerialBaud      = 115200
	DefaultJournalMaxAge   = 24 * time.Hour
	DefaultJournalMaxRows  = 500000
)

const maxFileSize = 1 * 1024 * 1024

// SimulatorConfig is the simulator's JSON configuration. Every field is
// optional; the Get* accessors fall back to the defaults above.
type SimulatorConfig struct {
	// Receiver
	UDPPort       *int    `json:"udp_port,omitempty"`
	ListenAddress *string `json:"listen_address,omitempty"`
	RcvBuf        *int    `json:"rcv_buf,omitempty"`
	PollTimeout   *string `json:"poll_timeout,omitempty"` // duration string like "1ms"

	// Frame loop
	FPS             *int    `json:"fps,omitempty"`
	RealtimeTimeout *string `json:"realtime_timeout,omitempty"`
	StatsInterval   *string `json:"stats_interval,omitempty"`
	ClearOnIdle     *bool   `json:"clear_on_idle,omitempty"`

	// Journal
	DBPath           *string `json:"db_path,omitempty"`
	JournalRetention *string `json:"journal_retention,omitempty"` // messages older than this are pruned
	// JournalMaxMessages caps the messages table; 0 is unlimited.
	JournalMaxMessages *int `json:"journal_max_messages,omitempty"`

	// Outputs
	HTTPListen     *string `json:"http_listen,omitempty"`
	ForwardAddress *string `json:"forward_address,omitempty"`
	ForwardPort    *int    `json:"forward_port,omitempty"`
	SerialPort     *string `json:"serial_port,omitempty"`
	SerialBaud     *int    `json:"serial_baud,omitempty"`

	Shape *trophy.Shape `json:"shape,omitempty"`
}

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }
func ptrBool(v bool) *bool       { return &v }

// Empty returns a config with every field unset.
func Empty() *SimulatorConfig {
	return &SimulatorConfig{}
}

// Defaults returns a config with every field set to its default, which is
// what SaveConfig writes for a fresh install.
func Defaults() *SimulatorConfig {
	shape := trophy.DefaultShape()
	return &SimulatorConfig{
		UDPPort:            ptrInt(DefaultUDPPort),
		ListenAddress:      ptrString(""),
		RcvBuf:             ptrInt(0),
		PollTimeout:        ptrString(DefaultPollTimeout.String()),
		FPS:                ptrInt(DefaultFPS),
		RealtimeTimeout:    ptrString(DefaultRealtimeTimeout.String()),
		StatsInterval:      ptrString(DefaultStatsInterval.String()),
		ClearOnIdle:        ptrBool(false),
		DBPath:             ptrString(""),
		JournalRetention:   ptrString(DefaultJournalMaxAge.String()),
		JournalMaxMessages: ptrInt(DefaultJournalMaxRows),
		HTTPListen:         ptrString(DefaultHTTPListen),
		ForwardAddress:     ptrString(""),
		ForwardPort:        ptrInt(DefaultForwardPort),
		SerialPort:         ptrString(""),
		SerialBaud:         ptrInt(DefaultSerialBaud),
		Shape:              &shape,
	}
}

// LoadConfig reads a config from a JSON file. Fields missing from the file
// keep their defaults, so partial configs are fine.
func LoadConfig(path string) (*SimulatorConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// A partial "shape" object decodes over the default shape, not over zeros.
	shape := trophy.DefaultShape()
	cfg := &SimulatorConfig{Shape: &shape}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as indented JSON.
func SaveConfig(path string, cfg *SimulatorConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid configuration: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *SimulatorConfig) Validate() error {
	if err := checkPort("udp_port", c.UDPPort); err != nil {
		return err
	}
	if err := checkPort("forward_port", c.ForwardPort); err != nil {
		return err
	}
	if c.FPS != nil && (*c.FPS < 1 || *c.FPS > 1000) {
		return fmt.Errorf("fps must be between 1 and 1000, got %d", *c.FPS)
	}
	if c.RcvBuf != nil && *c.RcvBuf < 0 {
		return fmt.Errorf("rcv_buf must be non-negative, got %d", *c.RcvBuf)
	}
	if c.JournalMaxMessages != nil && *c.JournalMaxMessages < 0 {
		return fmt.Errorf("journal_max_messages must be non-negative, got %d", *c.JournalMaxMessages)
	}
	if c.SerialBaud != nil && *c.SerialBaud <= 0 {
		return fmt.Errorf("serial_baud must be positive, got %d", *c.SerialBaud)
	}

	durations := []struct {
		name  string
		value *string
	}{
		{"poll_timeout", c.PollTimeout},
		{"realtime_timeout", c.RealtimeTimeout},
		{"stats_interval", c.StatsInterval},
		{"journal_retention", c.JournalRetention},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, *d.value)
		}
	}

	if c.Shape != nil {
		if err := c.Shape.Validate(); err != nil {
			return fmt.Errorf("invalid shape: %w", err)
		}
	}
	return nil
}

func checkPort(name string, p *int) error {
	if p == nil {
		return nil
	}
	if *p < 1 || *p > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, *p)
	}
	return nil
}

func parseDuration(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetUDPPort returns the udp_port value or the default.
func (c *SimulatorConfig) GetUDPPort() int {
	if c.UDPPort == nil {
		return DefaultUDPPort
	}
	return *c.UDPPort
}

// GetListenAddress returns the host the receiver binds to; empty means all interfaces.
func (c *SimulatorConfig) GetListenAddress() string {
	if c.ListenAddress == nil {
		return ""
	}
	return *c.ListenAddress
}

// GetRcvBuf returns the socket receive buffer size; 0 keeps the OS default.
func (c *SimulatorConfig) GetRcvBuf() int {
	if c.RcvBuf == nil {
		return 0
	}
	return *c.RcvBuf
}

// GetPollTimeout parses and returns the PollTimeout as a time.Duration.
func (c *SimulatorConfig) GetPollTimeout() time.Duration {
	return parseDuration(c.PollTimeout, DefaultPollTimeout)
}

// GetFPS returns the fps value or the default.
func (c *SimulatorConfig) GetFPS() int {
	if c.FPS == nil {
		return DefaultFPS
	}
	return *c.FPS
}

// GetRealtimeTimeout parses and returns the RealtimeTimeout as a time.Duration.
func (c *SimulatorConfig) GetRealtimeTimeout() time.Duration {
	return parseDuration(c.RealtimeTimeout, DefaultRealtimeTimeout)
}

// GetJournalRetention returns how long journal messages are kept.
func (c *SimulatorConfig) GetJournalRetention() time.Duration {
	return parseDuration(c.JournalRetention, DefaultJournalMaxAge)
}

// GetJournalMaxMessages returns the journal row cap or the default.
func (c *SimulatorConfig) GetJournalMaxMessages() int {
	if c.JournalMaxMessages == nil {
		return DefaultJournalMaxRows
	}
	return *c.JournalMaxMessages
}

// GetStatsInterval parses and returns the StatsInterval as a time.Duration.
func (c *SimulatorConfig) GetStatsInterval() time.Duration {
	return parseDuration(c.StatsInterval, DefaultStatsInterval)
}

// GetClearOnIdle returns the clear_on_idle value or the default.
func (c *SimulatorConfig) GetClearOnIdle() bool {
	if c.ClearOnIdle == nil {
		return false
	}
	return *c.ClearOnIdle
}

// GetHTTPListen returns the http_listen value or the default.
func (c *SimulatorConfig) GetHTTPListen() string {
	if c.HTTPListen == nil || *c.HTTPListen == "" {
		return DefaultHTTPListen
	}
	return *c.HTTPListen
}

// GetDBPath returns the journal database path; empty disables the journal.
func (c *SimulatorConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetForwardAddress returns the forward target host; empty disables forwarding.
func (c *SimulatorConfig) GetForwardAddress() string {
	if c.ForwardAddress == nil {
		return ""
	}
	return *c.ForwardAddress
}

// GetForwardPort returns the forward_port value or the default.
func (c *SimulatorConfig) GetForwardPort() int {
	if c.ForwardPort == nil {
		return DefaultForwardPort
	}
	return *c.ForwardPort
}

// GetSerialPort returns the serial device; empty disables the mirror.
func (c *SimulatorConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialBaud returns the serial_baud value or the default.
func (c *SimulatorConfig) GetSerialBaud() int {
	if c.SerialBaud == nil {
		return DefaultSerialBaud
	}
	return *c.SerialBaud
}

// GetShape returns the configured trophy shape or the default one.
func (c *SimulatorConfig) GetShape() trophy.Shape {
	if c.Shape == nil {
		return trophy.DefaultShape()
	}
	return *c.Shape
}
