package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Store string `env:"CMD_TEST_STORE" envDefault:"memory"`
	Mode  string `env:"CMD_TEST_MODE" envDefault:"strict"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("REPLAYKIT_CMD_TEST_STORE", "sqlite")
	t.Setenv("REPLAYKIT_CMD_TEST_MODE", "log")

	cfg := testConfig{}
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&cfg.Store, "store", cfg.Store, "store")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")

	if err := ParseArgs(fs, []string{"-store", "redis"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfg.Store != "redis" {
		t.Fatalf("expected flag value for store, got %q", cfg.Store)
	}
	if cfg.Mode != "log" {
		t.Fatalf("expected env mode, got %q", cfg.Mode)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected parse config to reject nil target")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceReplaykit, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("REPLAYKIT_OTEL_ENDPOINT", "")
	boom := errors.New("boom")
	called := false
	err := RunWithTelemetry(context.Background(), ServiceReplaykit, func(context.Context) error {
		called = true
		return boom
	})
	if !called {
		t.Fatal("expected run to be called")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}
