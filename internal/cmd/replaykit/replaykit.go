// Package replaykit implements the replaykit command: it runs a Lua scenario
// as a resumable, recorded run and reports the result.
package replaykit

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/louisbranch/replaykit/internal/checkpoint"
	"github.com/louisbranch/replaykit/internal/effect"
	"github.com/louisbranch/replaykit/internal/game"
	platformcmd "github.com/louisbranch/replaykit/internal/platform/cmd"
	"github.com/louisbranch/replaykit/internal/replay"
	"github.com/louisbranch/replaykit/internal/scenario"
	"github.com/louisbranch/replaykit/internal/storage/bbolt"
	"github.com/louisbranch/replaykit/internal/storage/redis"
	"github.com/louisbranch/replaykit/internal/storage/sqlite"
)

const (
	formatYAML = "yaml"
	formatJSON = "json"
)

var (
	// ErrScenarioRequired indicates a missing scenario path.
	ErrScenarioRequired = errors.New("scenario path is required")
	// ErrUnsupportedFormat indicates an output format other than yaml or json.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrListUnsupported indicates a store that cannot enumerate its runs.
	ErrListUnsupported = errors.New("store cannot list runs")
	// ErrEffectsDiffer indicates a run whose record differs from the compared document.
	ErrEffectsDiffer = errors.New("recorded effects differ")
)

// Config holds replaykit command configuration. Env tags are read with the
// REPLAYKIT_ prefix.
type Config struct {
	Scenario      string        `env:"SCENARIO_FILE"`
	RunID         string        `env:"RUN_ID"`
	DBPath        string        `env:"DB_PATH"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB"`
	RedisTTL      time.Duration `env:"REDIS_TTL"`
	BoltPath      string        `env:"BOLT_PATH"`
	Fresh         bool          `env:"FRESH"`
	ListRuns      bool          `env:"LIST_RUNS"`
	Export        string        `env:"EXPORT"`
	Compare       string        `env:"COMPARE"`
	Format        string        `env:"FORMAT" envDefault:"yaml"`
	Assertions    bool          `env:"ASSERT" envDefault:"true"`
	Verbose       bool          `env:"VERBOSE"`
}

// ParseConfig reads the environment, then flags.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario lua file")
	fs.StringVar(&cfg.RunID, "run-id", cfg.RunID, "run to resume (a new id is generated when empty)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite checkpoint database path")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis checkpoint store address")
	fs.DurationVar(&cfg.RedisTTL, "redis-ttl", cfg.RedisTTL, "expire redis checkpoints after this duration (0 keeps them)")
	fs.StringVar(&cfg.BoltPath, "bolt", cfg.BoltPath, "bolt checkpoint database path")
	fs.BoolVar(&cfg.Fresh, "fresh", cfg.Fresh, "ignore any stored checkpoint and record the run from scratch")
	fs.BoolVar(&cfg.ListRuns, "list-runs", cfg.ListRuns, "list the runs held by the store and exit")
	fs.StringVar(&cfg.Export, "export", cfg.Export, "write the recorded effects document to this path")
	fs.StringVar(&cfg.Compare, "compare", cfg.Compare, "fail unless the recorded effects match this exported document")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "report format: yaml or json")
	fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log expectations)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log every recorded call")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Report is the summary printed after a run.
type Report struct {
	RunID    string        `json:"run_id"`
	Scenario string        `json:"scenario"`
	Steps    int           `json:"steps"`
	Resumed  bool          `json:"resumed"`
	Executed int           `json:"executed"`
	Replayed int           `json:"replayed"`
	Digest   string        `json:"digest"`
	Game     *game.Game    `json:"game"`
	Effects  []effect.Node `json:"effects"`
}

// Run executes the replaykit command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.ListRuns {
		return listRuns(ctx, cfg, out)
	}
	if strings.TrimSpace(cfg.Scenario) == "" {
		return ErrScenarioRequired
	}
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = formatYAML
	}
	if format != formatYAML && format != formatJSON {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.Format)
	}

	logger := log.New(errOut, "", 0)
	s, err := scenario.LoadFile(cfg.Scenario)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Printf("close store: %v", err)
		}
	}()
	if cfg.Fresh {
		store = checkpoint.NewFresh(store)
	}

	runID := strings.TrimSpace(cfg.RunID)
	if runID == "" {
		runID = uuid.NewString()
		logger.Printf("run id: %s", runID)
	}

	assertions := scenario.Assertions{Mode: scenario.AssertionStrict, Logger: logger}
	if !cfg.Assertions {
		assertions.Mode = scenario.AssertionLogOnly
	}
	program, err := scenario.Program(s, game.NewRules(game.WithLogger(logger)), assertions)
	if err != nil {
		return err
	}

	result, err := replay.Run(ctx, store, runID, s.NewGame(), program, replay.Options{
		Logger:  logger,
		Verbose: cfg.Verbose,
	})
	if err != nil {
		return fmt.Errorf("run %s: %w", s.Name, err)
	}
	if err := scenario.Verify(s, result.State, assertions); err != nil {
		return fmt.Errorf("verify %s: %w", s.Name, err)
	}

	if cfg.Compare != "" {
		if err := compare(cfg.Compare, result.Effects); err != nil {
			return err
		}
	}
	if cfg.Export != "" {
		data, err := effect.Export(result.Effects)
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.Export, data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
	}

	return writeReport(out, format, Report{
		RunID:    result.RunID,
		Scenario: s.Name,
		Steps:    s.StepCount(),
		Resumed:  result.Resumed,
		Executed: result.Executed,
		Replayed: result.Replayed,
		Digest:   result.Digest,
		Game:     result.State,
		Effects:  result.Effects,
	})
}

type runLister interface {
	RunIDs(ctx context.Context) ([]string, error)
}

func listRuns(ctx context.Context, cfg Config, out io.Writer) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	lister, ok := store.(runLister)
	if !ok {
		return ErrListUnsupported
	}
	ids, err := lister.RunIDs(ctx)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	for _, id := range ids {
		if _, err := fmt.Fprintln(out, id); err != nil {
			return err
		}
	}
	return nil
}

// openStore picks redis, then sqlite, then bolt, then memory.
func openStore(ctx context.Context, cfg Config) (replay.CheckpointStore, func() error, error) {
	switch {
	case strings.TrimSpace(cfg.RedisAddr) != "":
		store, err := redis.Open(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case strings.TrimSpace(cfg.DBPath) != "":
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case strings.TrimSpace(cfg.BoltPath) != "":
		store, err := bbolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return checkpoint.NewMemory(), func() error { return nil }, nil
	}
}

func compare(path string, effects []effect.Node) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read compare document: %w", err)
	}
	expected, err := effect.Import(data)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	if !effect.Equal(effects, expected) {
		return fmt.Errorf("%w: %s", ErrEffectsDiffer, path)
	}
	return nil
}

func writeReport(out io.Writer, format string, report Report) error {
	var data []byte
	var err error
	switch format {
	case formatJSON:
		data, err = json.MarshalIndent(report, "", "  ")
		data = append(data, '\n')
	default:
		data, err = effect.RenderYAML(report)
	}
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = out.Write(data)
	return err
}
