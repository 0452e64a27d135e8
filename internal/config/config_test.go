package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoints.Local != DefaultLocalEndpoint {
		t.Errorf("Endpoints.Local = %q, want default %q", cfg.Endpoints.Local, DefaultLocalEndpoint)
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("Validate(defaults) = %v, want no errors", errs)
	}
}

func TestResolvedModelFallsBackManagerToArchitectToCoding(t *testing.T) {
	cfg := &Config{Models: Models{Architect: "arch-model", Coding: "code-model"}}
	if got := cfg.ResolvedModel("manager"); got != "arch-model" {
		t.Errorf("ResolvedModel(manager) = %q, want fallback to architect", got)
	}

	cfg2 := &Config{Models: Models{Coding: "code-model"}}
	if got := cfg2.ResolvedModel("manager"); got != "code-model" {
		t.Errorf("ResolvedModel(manager) = %q, want fallback to coding", got)
	}

	cfg3 := &Config{Models: Models{Manager: "mgr-model", Architect: "arch-model"}}
	if got := cfg3.ResolvedModel("manager"); got != "mgr-model" {
		t.Errorf("ResolvedModel(manager) = %q, want explicit manager model", got)
	}
}

func TestValidateRejectsBadEffortAndURL(t *testing.T) {
	cfg, err := parse([]byte(`{"reasoningEffort":{"coding":"extreme"},"endpoints":{"local":"not a url"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	errs := Validate(cfg)
	if len(errs) != 2 {
		t.Fatalf("Validate = %v, want 2 errors", errs)
	}
}

func TestParseFillsDefaultEndpointOnly(t *testing.T) {
	cfg, err := parse([]byte(`{"models":{"architect":"a"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Endpoints.Local != DefaultLocalEndpoint {
		t.Errorf("Endpoints.Local = %q, want default", cfg.Endpoints.Local)
	}
	if cfg.Models.Architect != "a" {
		t.Errorf("Models.Architect = %q, want \"a\"", cfg.Models.Architect)
	}
}
