package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"time"

	"github.com/brianhealey/lyngdorf-go/internal/hardware"
)

// Defaults for a fresh settings file.
const (
	DefaultURL           = "socket://lyngdorf.local:84"
	DefaultModel         = hardware.ModelMP60
	DefaultPollInterval  = 60 * time.Second
	DefaultHTTPAddr      = ":8084"
	DefaultZone2MaxVol   = -20.0
	DefaultReconnectWait = 5 * time.Second
)

// Duration is a time.Duration that reads and writes JSON as "2s" style
// strings. Bare numbers are taken as milliseconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("config: duration must be a string or milliseconds: %s", b)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Settings configures the bridge daemon.
type Settings struct {
	URL          string           `json:"url"`
	Model        hardware.ModelID `json:"model"`
	BaudRate     int              `json:"baud_rate,omitempty"`
	Timeout      Duration         `json:"timeout"`
	SuppressEcho bool             `json:"suppress_echo"`
	Verbosity    int              `json:"verbosity"`

	PollInterval  Duration `json:"poll_interval"`
	ReconnectWait Duration `json:"reconnect_wait"`
	HTTPAddr      string   `json:"http_addr"`
	Announce      bool     `json:"announce"` // advertise the HTTP API over mDNS

	Zone2Enabled   bool    `json:"zone2_enabled"`
	Zone2MaxVolume float64 `json:"zone2_max_volume"` // dB ceiling enforced by the bridge
	// Zone2DefaultSource is selected whenever zone 2 is switched on.
	Zone2DefaultSource *int `json:"zone2_default_source,omitempty"`

	// Sources renames device inputs by index in everything the bridge serves.
	Sources map[int]string `json:"sources,omitempty"`
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	if s.Zone2DefaultSource != nil {
		src := *s.Zone2DefaultSource
		s.Zone2DefaultSource = &src
	}
	s.Sources = maps.Clone(s.Sources)
	return s
}

// Equal reports whether s and o hold the same settings.
func (s *Settings) Equal(o *Settings) bool {
	return reflect.DeepEqual(s, o)
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		URL:            DefaultURL,
		Model:          DefaultModel,
		BaudRate:       hardware.DefaultBaudRate,
		Timeout:        Duration(hardware.DefaultTimeout),
		Verbosity:      1,
		PollInterval:   Duration(DefaultPollInterval),
		ReconnectWait:  Duration(DefaultReconnectWait),
		HTTPAddr:       DefaultHTTPAddr,
		Announce:       true,
		Zone2MaxVolume: DefaultZone2MaxVol,
	}
}

// Validate reports the first setting that cannot be used.
func (s *Settings) Validate() error {
	if _, err := hardware.ParseURL(s.URL); err != nil {
		return fmt.Errorf("config: url: %w", err)
	}
	if _, err := hardware.LookupProfile(s.Model); err != nil {
		return fmt.Errorf("config: model: %w", err)
	}
	if s.Verbosity < 0 || s.Verbosity > 2 {
		return fmt.Errorf("config: verbosity %d outside [0, 2]", s.Verbosity)
	}
	if s.Timeout < 0 || s.PollInterval < 0 || s.ReconnectWait < 0 {
		return fmt.Errorf("config: durations must not be negative")
	}
	p, _ := hardware.LookupProfile(s.Model)
	if src := s.Zone2DefaultSource; src != nil && (*src < 0 || *src > p.MaxSource) {
		return fmt.Errorf("config: zone2_default_source %d outside [0, %d]", *src, p.MaxSource)
	}
	for idx, name := range s.Sources {
		if idx < 0 || idx > p.MaxSource {
			return fmt.Errorf("config: sources: index %d outside [0, %d]", idx, p.MaxSource)
		}
		if name == "" {
			return fmt.Errorf("config: sources: empty name for index %d", idx)
		}
	}
	return nil
}

// Descriptor returns the connection descriptor for s.
func (s *Settings) Descriptor() (hardware.Descriptor, error) {
	d, err := hardware.ParseURL(s.URL)
	if err != nil {
		return hardware.Descriptor{}, err
	}
	if s.BaudRate != 0 {
		d.BaudRate = s.BaudRate
	}
	if s.Timeout != 0 {
		d.Timeout = s.Timeout.Std()
	}
	return d, nil
}
