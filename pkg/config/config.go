// Package config provides configuration types and loading for the mock DRC
// server. One configurable core replaces the original's three near-duplicate
// deployments: the retention cap, the conflict advance target, the id-space
// scoping and the authentication mode are all explicit settings.
package config

import (
	"fmt"

	"github.com/laa-dces/mock-drc/pkg/auth"
	"github.com/laa-dces/mock-drc/pkg/journal"
	"github.com/laa-dces/mock-drc/pkg/outcome"
)

// SeedEntry pre-programs a scripted status for a submission id before it is
// ever organically submitted.
type SeedEntry struct {
	// Entity is "Contribution" or "Fdc"; ignored when the id space is shared.
	Entity string `json:"entity,omitempty" yaml:"entity,omitempty"`
	// ID is the submission id.
	ID int `json:"id" yaml:"id"`
	// StatusCode is the scripted status code.
	StatusCode int `json:"statusCode" yaml:"statusCode"`
}

// TLSConfig defines the HTTPS listener settings.
type TLSConfig struct {
	// Enabled enables HTTPS.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// CertFile and KeyFile point at the server certificate pair.
	CertFile string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
	// AutoGenerateCert generates a self-signed localhost certificate when no
	// files are configured.
	AutoGenerateCert bool `json:"autoGenerateCert,omitempty" yaml:"autoGenerateCert,omitempty"`
	// ClientCAFile enables verified client-certificate requests at the TLS
	// layer using the given CA bundle.
	ClientCAFile string `json:"clientCaFile,omitempty" yaml:"clientCaFile,omitempty"`
}

// Config is the complete server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr" yaml:"addr"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// LogFormat is text or json.
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`

	// JournalCap is the request-journal retention cap. The deployed variants
	// used 1000 and 350.
	JournalCap int `json:"journalCap,omitempty" yaml:"journalCap,omitempty"`

	// DuplicateStatus is the status an id advances to after its first
	// success: 634 for the typed duplicate-id conflict (default), 409 for
	// the generic-conflict variant.
	DuplicateStatus int `json:"duplicateStatus,omitempty" yaml:"duplicateStatus,omitempty"`

	// SharedIDSpace makes both submission endpoints share one numeric id
	// space, as the original single-dictionary variants behaved. Off by
	// default: each entity kind gets its own id space.
	SharedIDSpace bool `json:"sharedIdSpace,omitempty" yaml:"sharedIdSpace,omitempty"`

	// DRCIDSeed is the starting value of the synthetic id sequence.
	DRCIDSeed int64 `json:"drcIdSeed,omitempty" yaml:"drcIdSeed,omitempty"`

	// Seed pre-programs scripted statuses at startup.
	Seed []SeedEntry `json:"seed,omitempty" yaml:"seed,omitempty"`

	// TLS configures the HTTPS listener.
	TLS TLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`

	// Auth configures request authentication.
	Auth auth.Config `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// Default returns the configuration of the open local-dev variant: plain
// HTTP, no auth, typed duplicate conflicts.
func Default() *Config {
	return &Config{
		Addr:            ":8080",
		LogLevel:        "info",
		LogFormat:       "text",
		JournalCap:      journal.DefaultCap,
		DuplicateStatus: outcome.StatusDuplicate,
		DRCIDSeed:       11,
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if c.JournalCap < 0 {
		return fmt.Errorf("journalCap cannot be negative: %d", c.JournalCap)
	}
	if c.DuplicateStatus != 0 &&
		c.DuplicateStatus != outcome.StatusDuplicate &&
		c.DuplicateStatus != outcome.StatusGenericConflict {
		return fmt.Errorf("duplicateStatus must be %d or %d, got %d",
			outcome.StatusDuplicate, outcome.StatusGenericConflict, c.DuplicateStatus)
	}
	switch c.Auth.Mode {
	case "", auth.ModeDisabled, auth.ModeAny, auth.ModeAll:
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	for _, seed := range c.Seed {
		if seed.ID <= 0 {
			return fmt.Errorf("seed entry id must be positive, got %d", seed.ID)
		}
		if seed.StatusCode <= 0 {
			return fmt.Errorf("seed entry for id %d has no status code", seed.ID)
		}
	}
	if c.TLS.Enabled && !c.TLS.AutoGenerateCert && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls requires certFile and keyFile, or autoGenerateCert")
	}
	return nil
}
