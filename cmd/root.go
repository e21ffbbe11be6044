package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hcl-hz/PMS-board/internal/board"
	"github.com/hcl-hz/PMS-board/internal/models"
	"github.com/hcl-hz/PMS-board/internal/output"
	"github.com/hcl-hz/PMS-board/internal/session"
	"github.com/hcl-hz/PMS-board/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui       *output.UI
	boardSvc *board.Service

	verbose bool
	dryRun  bool
	asActor string
)

var rootCmd = &cobra.Command{
	Use:   "board",
	Short: "Project issue board - browse issues, comments and attachments",
	Long: `board is a project issue board. Users post issues scoped to a project,
attach files, comment publicly or as admin-only internal notes, and track
status and work hours.

The board lives in memory. It is loaded from a generated demo dataset or
from a SQLite snapshot, and served over HTTP or MCP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/board/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&asActor, "as", "", "Act as this user id for one command (overrides 'board actor use')")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "board")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	setDefaults(filepath.Join(home, ".config", "board"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default value.
func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("source", "seed")
	viper.SetDefault("source_path", filepath.Join(stateDir, "board.db"))
	viper.SetDefault("seed.count", store.DefaultSeedCount)
	viper.SetDefault("timezone", "")
	viper.SetDefault("page_size", 10)
	viper.SetDefault("comment.max_length", 200)
	viper.SetDefault("port", 8080)
	viper.SetDefault("session.max", session.DefaultCapacity)
	viper.SetDefault("session.ttl", session.DefaultTTL.String())
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// The board is loaded lazily, only when a command needs it.
	// This allows config/version commands to run without a source.
}

// location returns the configured time zone for date filters and seeding.
func location() (*time.Location, error) {
	name := viper.GetString("timezone")
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// newSource builds the configured board source. The returned closer releases
// any resources the source holds.
func newSource(ctx context.Context, loc *time.Location) (store.Source, func(), error) {
	switch kind := viper.GetString("source"); kind {
	case "seed", "":
		count := viper.GetInt("seed.count")
		ui.VerboseLog("Seeding %d issues", count)
		return store.NewSeedSource(time.Now(), count, loc), func() {}, nil
	case "sqlite":
		path := viper.GetString("source_path")
		ui.VerboseLog("Loading board from %s", path)
		src, err := store.NewSQLiteSource(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot: %w", err)
		}
		if err := src.Migrate(ctx); err != nil {
			_ = src.Close()
			return nil, nil, fmt.Errorf("migrate snapshot: %w", err)
		}
		return src, func() { _ = src.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q (want seed or sqlite)", kind)
	}
}

// getService returns the shared board service, loading the board on first call.
func getService() (*board.Service, error) {
	if boardSvc != nil {
		return boardSvc, nil
	}

	ctx := context.Background()
	loc, err := location()
	if err != nil {
		return nil, err
	}
	src, closeSrc, err := newSource(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	st := store.NewMemoryStore(src)
	if err := st.Load(ctx); err != nil {
		return nil, err
	}

	boardSvc = board.NewService(st, board.WithLocation(loc), board.WithLogger(slog.Default()))
	return boardSvc, nil
}

// sessionFile returns the file that remembers the selected actor.
func sessionFile() *session.FileStore {
	return session.NewFileStore(filepath.Join(viper.GetString("state_dir"), "session.yaml"))
}

// currentActor resolves the acting user from --as or the saved session.
// It returns nil when nobody is selected.
func currentActor(ctx context.Context, svc *board.Service) (*models.Actor, error) {
	id := asActor
	if id == "" {
		saved, err := sessionFile().CurrentActorID()
		if err != nil {
			return nil, err
		}
		id = saved
	}
	if id == "" {
		return nil, nil
	}

	a, err := svc.Actor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve actor %s: %w", id, err)
	}
	return a, nil
}
