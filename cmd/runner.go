package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/desertthunder/listx/internal/ordering"
	"github.com/desertthunder/listx/internal/prefs"
	"github.com/desertthunder/listx/internal/repositories"
	"github.com/desertthunder/listx/internal/shared"
	"github.com/desertthunder/listx/internal/tasks"
)

// errReported marks a failure the command has already printed.
var errReported = errors.New("reported")

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store is opened lazily by the first command that needs it.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	isTerminal func() bool

	db      *sql.DB
	ownsDB  bool
	prefs   prefs.Store
	repo    *repositories.Repository
	order   *ordering.Engine
	backups *tasks.BackupEngine
	stop    context.CancelFunc
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config // loaded from ConfigPath or the --config flag when nil
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	IsTerminal func() bool // reports whether Input is interactive
	DB         *sql.DB     // opened from the config when nil; a provided DB is not closed
	Prefs      prefs.Store // file store from the config when nil
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.IsTerminal == nil {
		opts.IsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		isTerminal: opts.IsTerminal,
		db:         opts.DB,
		prefs:      opts.Prefs,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, listsCommand, itemsCommand, sortCommand, reorderCommand, exportCommand, importCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the configuration once: explicit config, then the config file, then defaults.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := r.configPath
	if path == "" {
		path = cmd.String("config")
	}

	config := shared.DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := shared.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	if level := cmd.String("log-level"); level != "" {
		config.Log.Level = level
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))

	r.config = config
	r.configPath = path
	return config, nil
}

// open wires the store: database, repository, ordering engine and backup engine.
func (r *Runner) open(ctx context.Context, cmd *cli.Command) error {
	if r.repo != nil {
		return nil
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if r.db == nil {
		db, err := shared.OpenDatabase(config.Database.Driver, config.Database.Path)
		if err != nil {
			return err
		}
		if config.Database.Path != shared.MemoryPath {
			shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		}
		r.db = db
		r.ownsDB = true
	}
	if err := shared.RunMigrations(r.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if r.prefs == nil {
		store, err := prefs.NewFileStore(config.Preferences.Path)
		if err != nil {
			return err
		}
		r.prefs = store
	}

	order, err := ordering.New(r.prefs, ordering.Options{Logger: shared.WithLogger(r.logger, "component", "ordering")})
	if err != nil {
		return err
	}
	repo := repositories.New(r.db, repositories.WithLogger(shared.WithLogger(r.logger, "component", "repository")))
	repo.AddDeleteHook(order)

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	snapshots, err := repo.Subscribe(runCtx)
	if err != nil {
		stop()
		order.Close()
		return err
	}
	go func() {
		if err := order.Run(runCtx, snapshots); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("ordering stopped", "err", err)
		}
	}()

	r.order = order
	r.repo = repo
	r.backups = tasks.NewBackupEngine(repo, config.Export.AppVersion, shared.WithLogger(r.logger, "component", "backup"))
	r.stop = stop
	return nil
}

// Close stops the ordering engine and releases the database if the runner opened it.
func (r *Runner) Close() error {
	if r.stop != nil {
		r.stop()
	}
	if r.order != nil {
		r.order.Close()
	}
	if r.repo != nil {
		r.repo.Close()
	}
	if r.db != nil && r.ownsDB {
		return r.db.Close()
	}
	return nil
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
