package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/mixbridge/internal/acquire"
	"github.com/desertthunder/mixbridge/internal/services"
	"github.com/desertthunder/mixbridge/internal/shared"
	"github.com/desertthunder/mixbridge/internal/ui"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	source     services.Source
	backend    services.Backend
	clock      acquire.Clock
	logger     *log.Logger
	output     io.Writer
	palette    *ui.Palette
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Source and Backend are built from the configuration when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Source     services.Source
	Backend    services.Backend
	Clock      acquire.Clock
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = acquire.SystemClock()
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		source:     opts.Source,
		backend:    opts.Backend,
		clock:      opts.Clock,
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    ui.DefaultPalette,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, indexCommand, dedupeCommand, sweepCommand, queueCommand, historyCommand, matchCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration unless one was injected and applies the log level.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.IsSet("config") || r.configPath == "" {
		r.configPath = cmd.String("config")
	}

	if r.config == nil {
		config, err := r.loadConfig()
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))
	return ctx, nil
}

func (r *Runner) loadConfig() (*shared.Config, error) {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Warn("config file not found, using defaults", "path", r.configPath)
		config := shared.DefaultConfig()
		config.ApplyEnv(os.LookupEnv)
		return config, nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	return config, nil
}

func (r *Runner) sourceService() (services.Source, error) {
	if r.source != nil {
		return r.source, nil
	}

	svc, err := services.NewSpotifyService(map[string]string{
		"client_id":     r.config.Source.Spotify.ClientID,
		"client_secret": r.config.Source.Spotify.ClientSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	r.source = svc
	return svc, nil
}

func (r *Runner) backendService() services.Backend {
	if r.backend == nil {
		r.backend = services.NewSlskdService(r.config.Backend.URL, r.config.Backend.APIKey, r.config.Backend.RequestTimeout.Duration)
	}
	return r.backend
}

// openDatabase opens the run history database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func (r *Runner) acquireOptions() acquire.Options {
	return acquire.Options{
		Format:       r.config.Backend.Format,
		MinBitRate:   r.config.Backend.MinBitRate,
		PollInterval: r.config.Backend.PollInterval.Duration,
		MaxWait:      r.config.Backend.MaxWait.Duration,
		Pacing:       r.config.Sync.TrackPacing.Duration,
	}
}

func (r *Runner) now() time.Time {
	return r.clock.Now()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
