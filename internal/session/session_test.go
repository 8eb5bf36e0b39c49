package session

import (
	"errors"
	"fmt"
	"testing"
)

func TestFileAllowedDefaults(t *testing.T) {
	s := &Session{cwd: "/proj", config: DefaultConfig()}
	if !s.fileAllowed("/proj/src/main.ts") {
		t.Fatal("empty include list must admit every project file")
	}
}

func TestFileAllowedIncludeExclude(t *testing.T) {
	s := &Session{cwd: "/proj", config: Config{
		Include: []string{"src/*.ts"},
		Exclude: []string{"src/*.test.ts"},
	}}
	if !s.fileAllowed("/proj/src/main.ts") {
		t.Fatal("included file rejected")
	}
	if s.fileAllowed("/proj/src/main.test.ts") {
		t.Fatal("excluded file admitted")
	}
	if s.fileAllowed("/proj/vendor/dep.ts") {
		t.Fatal("file outside include patterns admitted")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.ValidateCasts || !cfg.ValidateParameters || !cfg.ValidateReturns {
		t.Fatal("validation toggles must default on")
	}
	if cfg.ReusableValidators != ReusableValidatorsAuto {
		t.Fatalf("reusableValidators must default to auto, got %q", cfg.ReusableValidators)
	}
	if !cfg.SourceMap.Enabled || !cfg.SourceMap.IncludeContent || cfg.SourceMap.Inline {
		t.Fatal("source maps default to enabled, with content, not inline")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapping: %w", parseError("/proj/a.ts", "bad syntax", cause))

	se, ok := AsSessionError(err)
	if !ok {
		t.Fatal("expected a session error in the chain")
	}
	if se.Kind != KindParse {
		t.Fatalf("expected parse kind, got %s", se.Kind)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause must survive through Unwrap")
	}
}
