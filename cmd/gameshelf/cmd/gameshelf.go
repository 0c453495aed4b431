package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"gameshelf/backend"
	"gameshelf/backend/sqlite"
	"gameshelf/internal/auth"
	"gameshelf/internal/cache"
	"gameshelf/internal/config"
	"gameshelf/internal/credentials"
	"gameshelf/internal/state"
	"gameshelf/internal/utils"
	"gameshelf/internal/views"
)

// Version information, set at build time
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// loadTimeout bounds the wait for the first live snapshot.
const loadTimeout = 10 * time.Second

// Config holds application configuration
type Config struct {
	NoPrompt     bool
	Verbose      bool
	OutputFormat string
	ConfigPath   string              // Path to config file (empty uses the XDG default)
	DBPath       string              // Overrides store.path (for testing)
	CacheDir     string              // Overrides cache.dir (for testing)
	MediaDir     string              // Overrides storage.media_dir (for testing)
	Keyring      credentials.Keyring // Replaces the system keyring (for testing)
	Stdin        io.Reader           // Prompt input, os.Stdin when nil
	Interactive  bool                // Prompt even when stdin is not a terminal (for testing)
	Context      context.Context     // Parent context of serve and watch (for testing)
	Now          func() time.Time
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewGameshelf(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			if cfg != nil && cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewGameshelf creates the root command with injectable IO
func NewGameshelf(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "gameshelf",
		Short:   "Track your game collection and gaming todos",
		Long:    "gameshelf keeps a personal game collection and todo list in sync across every open view.",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().String("config", "", "Path to the config file")

	cmd.AddCommand(newVersionCmd(stdout))
	cmd.AddCommand(newSignInCmd(stdout, stderr, cfg))
	cmd.AddCommand(newSignOutCmd(stdout, stderr, cfg))
	cmd.AddCommand(newWhoAmICmd(stdout, stderr, cfg))
	cmd.AddCommand(newCardCmd(stdout, stderr, cfg))
	cmd.AddCommand(newGameCmd(stdout, stderr, cfg))
	cmd.AddCommand(newTodoCmd(stdout, stderr, cfg))
	cmd.AddCommand(newCategoryCmd(stdout, stderr, cfg))
	cmd.AddCommand(newBrowseCmd(stdout, stderr, cfg))
	cmd.AddCommand(newWatchCmd(stdout, stderr, cfg))
	cmd.AddCommand(newServeCmd(stdout, stderr, cfg))

	return cmd
}

// newVersionCmd creates the 'version' subcommand
func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			if jsonOutput {
				return writeJSON(stdout, versionResponse{
					Version:   Version,
					Commit:    Commit,
					BuildDate: BuildDate,
					Result:    ResultInfoOnly,
				})
			}
			_, _ = fmt.Fprintf(stdout, "gameshelf\n  Version:    %s\n  Commit:     %s\n  Build date: %s\n", Version, Commit, BuildDate)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// env is what every subcommand works with: the loaded configuration and
// the resources opened for this run.
type env struct {
	cfg        *Config
	conf       *config.Config
	stdout     io.Writer
	stderr     io.Writer
	jsonOutput bool
	ctx        context.Context
	viewsDir   string

	store     *sqlite.Backend
	snapshots *cache.Store
	closers   []func()
}

// setup loads the configuration and applies flag and test overrides.
func setup(cmd *cobra.Command, cfg *Config, stdout, stderr io.Writer) (*env, error) {
	if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
		cfg.NoPrompt = true
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Verbose = true
	}
	outputFormat := cfg.OutputFormat
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		outputFormat = "json"
	}
	utils.SetVerboseMode(cfg.Verbose)

	configPath := cfg.ConfigPath
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		configPath = p
	}
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.DBPath != "" {
		conf.Store.Path = cfg.DBPath
	}
	if cfg.CacheDir != "" {
		conf.Cache.Dir = cfg.CacheDir
	}
	if cfg.MediaDir != "" {
		conf.Storage.MediaDir = cfg.MediaDir
	}
	conf.ApplyFlags(cfg.NoPrompt, outputFormat)
	if err := conf.Validate(); err != nil {
		return nil, utils.WrapWithSuggestion(err, "Fix the value in your config file or the matching GAMESHELF_ environment variable")
	}
	cfg.NoPrompt = conf.NoPrompt

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	if configPath == "" {
		configPath = filepath.Join(config.GetConfigDir(), "config.yaml")
	}

	return &env{
		cfg:        cfg,
		conf:       conf,
		stdout:     stdout,
		stderr:     stderr,
		jsonOutput: conf.OutputFormat == "json",
		ctx:        ctx,
		viewsDir:   filepath.Join(filepath.Dir(configPath), "views"),
	}, nil
}

// close releases everything opened through the env, newest first.
func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *env) onClose(fn func()) {
	e.closers = append(e.closers, fn)
}

// provider returns the identity provider backed by the configured keyring.
func (e *env) provider() *auth.Provider {
	var opts []credentials.ManagerOption
	if e.cfg.Keyring != nil {
		opts = append(opts, credentials.WithKeyring(e.cfg.Keyring))
	}
	creds := credentials.NewManager(e.conf.GetKeyringService(), opts...)
	return auth.NewProvider(creds, auth.Config{
		TTL:    e.conf.GetSessionTTL(),
		Secret: e.conf.Auth.Secret,
		Now:    e.cfg.Now,
	})
}

// session returns the signed-in user or a not-signed-in error.
func (e *env) session() (*auth.Session, error) {
	return e.provider().Current(e.ctx)
}

// openStore opens the collection database. live enables refreshes from
// writes made by other processes.
func (e *env) openStore(live bool) (*sqlite.Backend, error) {
	if e.store != nil {
		return e.store, nil
	}
	path := e.conf.GetDatabasePath()
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	store, err := sqlite.NewWithOptions(path, sqlite.Options{WatchExternal: live && e.conf.Store.WatchExternal})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	e.store = store
	e.onClose(func() { _ = store.Close() })
	return store, nil
}

// stateOptions returns the options shared by every state holder.
func (e *env) stateOptions() []state.Option {
	opts := []state.Option{state.WithMatchMode(views.ParseMatchMode(e.conf.GetMatchMode()))}
	if snapshots := e.snapshotStore(); snapshots != nil {
		opts = append(opts, state.WithSnapshotStore(snapshots))
	}
	return opts
}

// snapshotStore opens the persisted snapshot cache once. A cache that
// cannot be opened, e.g. because another process holds its lock, is
// skipped.
func (e *env) snapshotStore() *cache.Store {
	if e.snapshots != nil || !e.conf.IsCachePersistEnabled() {
		return e.snapshots
	}
	snapshots, err := cache.Open(e.conf.GetCacheDir())
	if err != nil {
		utils.Debugf("snapshot cache disabled: %v", err)
		return nil
	}
	e.snapshots = snapshots
	e.onClose(func() { _ = snapshots.Close() })
	return snapshots
}

// loadGames subscribes a game state holder to the signed-in user's
// collection and waits for the first live snapshot.
func (e *env) loadGames(live bool) (*state.GameState, *auth.Session, error) {
	session, err := e.session()
	if err != nil {
		return nil, nil, err
	}
	store, err := e.openStore(live)
	if err != nil {
		return nil, nil, err
	}
	games := state.NewGameState(store, e.stateOptions()...)
	e.onClose(games.Close)
	games.Load(e.ctx, session.OwnerID)
	if err := waitLoaded(e.ctx, games.WaitLoaded); err != nil {
		return nil, nil, err
	}
	return games, session, nil
}

// loadTodos is loadGames for the todo list.
func (e *env) loadTodos() (*state.TodoState, error) {
	session, err := e.session()
	if err != nil {
		return nil, err
	}
	store, err := e.openStore(false)
	if err != nil {
		return nil, err
	}
	todos := state.NewTodoState(store, e.stateOptions()...)
	e.onClose(todos.Close)
	todos.Load(e.ctx, session.OwnerID)
	if err := waitLoaded(e.ctx, todos.WaitLoaded); err != nil {
		return nil, err
	}
	return todos, nil
}

// loadCategories is loadGames for the custom categories.
func (e *env) loadCategories(ownerID string) (*state.CategoryState, error) {
	store, err := e.openStore(false)
	if err != nil {
		return nil, err
	}
	categories := state.NewCategoryState(store, e.stateOptions()...)
	e.onClose(categories.Close)
	categories.Load(e.ctx, ownerID)
	if err := waitLoaded(e.ctx, categories.WaitLoaded); err != nil {
		return nil, err
	}
	return categories, nil
}

func waitLoaded(ctx context.Context, wait func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err := wait(ctx); err != nil {
		return fmt.Errorf("collection did not load: %w", err)
	}
	return nil
}

// stdin returns where prompts read from.
func (e *env) stdin() io.Reader {
	if e.cfg.Stdin != nil {
		return e.cfg.Stdin
	}
	return os.Stdin
}

// interactive reports whether prompts may be shown.
func (e *env) interactive() bool {
	if e.cfg.NoPrompt || e.jsonOutput {
		return false
	}
	if e.cfg.Interactive {
		return true
	}
	f, ok := e.stdin().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// done prints the result code for a finished command in no-prompt mode.
func (e *env) done(result string) {
	if e.cfg.NoPrompt && !e.jsonOutput {
		_, _ = fmt.Fprintln(e.stdout, result)
	}
}

// warn prints the first line of err as a warning.
func (e *env) warn(err error) {
	msg, _, _ := strings.Cut(err.Error(), "\n")
	_, _ = fmt.Fprintln(e.stderr, "Warning:", msg)
}

// JSON output structures
type gameJSON struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Genre    string `json:"genre"`
	Status   string `json:"status"`
	Category string `json:"category"`
	Rating   int    `json:"rating"`
	Notes    string `json:"notes,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	GameURL  string `json:"game_url,omitempty"`
}

type todoJSON struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Priority  string `json:"priority"`
	Created   string `json:"created"`
}

type listGamesResponse struct {
	Games    []gameJSON `json:"games"`
	Count    int        `json:"count"`
	Total    int        `json:"total"`
	Search   string     `json:"search,omitempty"`
	Category string     `json:"category"`
	Result   string     `json:"result"`
}

type listTodosResponse struct {
	Todos   []todoJSON `json:"todos"`
	Count   int        `json:"count"`
	Total   int        `json:"total"`
	Pending int        `json:"pending"`
	Result  string     `json:"result"`
}

type gameActionResponse struct {
	Action  string   `json:"action"`
	Game    gameJSON `json:"game"`
	Warning string   `json:"warning,omitempty"`
	Result  string   `json:"result"`
}

type todoActionResponse struct {
	Action string   `json:"action"`
	Todo   todoJSON `json:"todo"`
	Result string   `json:"result"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Result string `json:"result"`
}

type versionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	Result    string `json:"result"`
}

func gameToJSON(g backend.Game) gameJSON {
	return gameJSON{
		ID:       g.ID,
		Title:    g.Title,
		Genre:    g.Genre,
		Status:   g.Status,
		Category: g.Category,
		Rating:   g.Rating,
		Notes:    g.Notes,
		ImageURL: g.ImageURL,
		GameURL:  g.GameURL,
	}
}

func gamesToJSON(games []backend.Game) []gameJSON {
	out := make([]gameJSON, 0, len(games))
	for _, g := range games {
		out = append(out, gameToJSON(g))
	}
	return out
}

func todoToJSON(t backend.Todo) todoJSON {
	return todoJSON{
		ID:        t.ID,
		Title:     t.Title,
		Completed: t.Completed,
		Priority:  string(t.Priority),
		Created:   t.Created.UTC().Format(time.RFC3339),
	}
}

// writeJSON prints v as one line of JSON
func writeJSON(stdout io.Writer, v any) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	}

	jsonBytes, _ := json.Marshal(response)
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}
