package ircd

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the on-disk configuration file format, decoded with
// github.com/BurntSushi/toml. It replaces the teacher's hand-rolled
// key=value reader (vendored summercat.com/config) with a real ecosystem
// TOML library, per SPEC_FULL.md §3 "Configuration".
type Config struct {
	ListenHost string `toml:"listen-host"`
	ListenPort uint16 `toml:"listen-port"`
	Password   string `toml:"password"`

	ServerName  string `toml:"server-name"`
	Version     string `toml:"version"`
	CreatedDate string `toml:"created-date"`

	// RegistrationTimeout, if zero, keeps the default in New() (60s).
	RegistrationTimeout duration `toml:"registration-timeout"`
}

// duration lets a TOML string like "60s" decode straight into a
// time.Duration, following the same convention as the teacher's
// time.ParseDuration use in checkAndParseConfig.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrap(err, "invalid duration")
	}
	*d = duration(parsed)
	return nil
}

// LoadConfig reads and validates a TOML configuration file, mirroring the
// teacher's checkConfig required-key validation.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrap(err, "unable to parse configuration file")
	}

	if cfg.ListenPort == 0 {
		return nil, errors.New("configuration is missing listen-port")
	}
	if cfg.Password == "" {
		return nil, errors.New("configuration is missing password")
	}

	if cfg.ServerName == "" {
		cfg.ServerName = "driftwood"
	}
	if cfg.Version == "" {
		cfg.Version = "driftwood-0.1"
	}

	return &cfg, nil
}

// Apply configures a Server built with New() from a loaded Config,
// overriding defaults where the config sets them.
func (s *Server) Apply(cfg *Config) {
	if cfg.ListenHost != "" {
		s.host = cfg.ListenHost
	}
	if cfg.ListenPort != 0 {
		s.port = cfg.ListenPort
	}
	if cfg.Password != "" {
		s.password = cfg.Password
	}
	if cfg.ServerName != "" {
		s.name = cfg.ServerName
	}
	if cfg.Version != "" {
		s.version = cfg.Version
	}
	if cfg.CreatedDate != "" {
		s.created = cfg.CreatedDate
	}
	if cfg.RegistrationTimeout != 0 {
		s.registrationTimeout = time.Duration(cfg.RegistrationTimeout)
	}
}
