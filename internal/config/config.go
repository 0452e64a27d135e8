// Package config loads and validates the kernel's JSON configuration file.
//
// Grounded on internal/config/config.go: the shape (a typed Config struct,
// a Load that reads bytes and calls an internal parse, a Validate that
// collects []error rather than failing on the first problem) is carried
// over directly. The wire format changes from YAML to JSON because the
// spec fixes JSON as the config format; gopkg.in/yaml.v3 is accordingly
// dropped in favor of encoding/json (see DESIGN.md).
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
)

// ReasoningEffort is one of the four levels the kernel passes through to
// a planning or coding agent invocation.
type ReasoningEffort string

const (
	EffortUnset  ReasoningEffort = ""
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
	EffortXHigh  ReasoningEffort = "xhigh"
)

func (e ReasoningEffort) valid() bool {
	switch e {
	case EffortUnset, EffortLow, EffortMedium, EffortHigh, EffortXHigh:
		return true
	default:
		return false
	}
}

// DefaultLocalEndpoint is the loopback URL the MCP server binds to when
// endpoints.local is not set.
const DefaultLocalEndpoint = "http://127.0.0.1:8097"

// Models names the model used per driver role.
type Models struct {
	Architect string `json:"architect,omitempty"`
	Manager   string `json:"manager,omitempty"`
	Coding    string `json:"coding,omitempty"`
}

// Effort carries the reasoning-effort knob per driver role.
type Effort struct {
	Architect ReasoningEffort `json:"architect,omitempty"`
	Manager   ReasoningEffort `json:"manager,omitempty"`
	Coding    ReasoningEffort `json:"coding,omitempty"`
}

// Endpoints carries the MCP server's bind address.
type Endpoints struct {
	Local string `json:"local,omitempty"`
}

// Config is the full contents of the kernel's JSON config file. All keys
// are optional (spec.md §6).
type Config struct {
	Models          Models    `json:"models,omitempty"`
	ReasoningEffort Effort    `json:"reasoningEffort,omitempty"`
	Endpoints       Endpoints `json:"endpoints,omitempty"`
}

// ResolvedModel returns the model name for a given role, falling back
// from manager to architect, then to coding, matching spec.md §6's
// fallback note for models.manager.
func (c *Config) ResolvedModel(role string) string {
	switch role {
	case "architect":
		return c.Models.Architect
	case "manager":
		if c.Models.Manager != "" {
			return c.Models.Manager
		}
		if c.Models.Architect != "" {
			return c.Models.Architect
		}
		return c.Models.Coding
	case "coding":
		return c.Models.Coding
	default:
		return ""
	}
}

// ResolvedEffort returns the reasoning-effort setting for a role, or
// EffortUnset if not configured.
func (c *Config) ResolvedEffort(role string) ReasoningEffort {
	switch role {
	case "architect":
		return c.ReasoningEffort.Architect
	case "manager":
		return c.ReasoningEffort.Manager
	case "coding":
		return c.ReasoningEffort.Coding
	default:
		return EffortUnset
	}
}

// Load reads and parses a JSON config file, filling defaults. A missing
// file is not an error: the kernel runs with all-default configuration,
// since spec.md §6 marks every key optional.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return parse(nil)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config JSON: %w", err)
		}
	}
	if cfg.Endpoints.Local == "" {
		cfg.Endpoints.Local = DefaultLocalEndpoint
	}
	return &cfg, nil
}

// Validate collects every configuration problem rather than stopping at
// the first one, mirroring the teacher's Validate/ValidateGates style.
func Validate(cfg *Config) []error {
	var errs []error

	if _, err := url.ParseRequestURI(cfg.Endpoints.Local); err != nil {
		errs = append(errs, fmt.Errorf("endpoints.local: invalid URL %q: %w", cfg.Endpoints.Local, err))
	}

	for _, pair := range []struct {
		role   string
		effort ReasoningEffort
	}{
		{"architect", cfg.ReasoningEffort.Architect},
		{"manager", cfg.ReasoningEffort.Manager},
		{"coding", cfg.ReasoningEffort.Coding},
	} {
		if !pair.effort.valid() {
			errs = append(errs, fmt.Errorf("reasoningEffort.%s: invalid value %q", pair.role, pair.effort))
		}
	}

	return errs
}
