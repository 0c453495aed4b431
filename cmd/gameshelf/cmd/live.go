package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"gameshelf/internal/server"
	"gameshelf/internal/shutdown"
	"gameshelf/internal/state"
	"gameshelf/internal/storage"
	"gameshelf/internal/tui"
	"gameshelf/internal/utils"
	"gameshelf/internal/views"
)

// cleanupTimeout bounds how long stopping a long-running command may take.
const cleanupTimeout = 5 * time.Second

// newShutdownManager returns a manager that stops on a signal or when the
// parent context ends.
func newShutdownManager(parent context.Context) *shutdown.Manager {
	mgr := shutdown.NewManager()
	mgr.HandleSignals()
	go func() {
		select {
		case <-parent.Done():
			mgr.ShutdownWithReason("parent context done")
		case <-mgr.Context().Done():
		}
	}()
	return mgr
}

func finish(mgr *shutdown.Manager) {
	mgr.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := mgr.Wait(ctx); err != nil {
		utils.Warnf("cleanup did not finish: %v", err)
	}
}

// newBrowseCmd creates the 'browse' subcommand
func newBrowseCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse your collection in an interactive terminal UI",
		Long:  "Open the collection browser. It stays up to date with changes made anywhere, including other gameshelf processes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			if !e.interactive() {
				return utils.WrapWithSuggestion(errors.New("browse needs an interactive terminal"),
					"Use 'gameshelf game list' or 'gameshelf watch' instead")
			}
			return doBrowse(e)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func doBrowse(e *env) error {
	mgr := newShutdownManager(e.ctx)
	defer finish(mgr)

	e.ctx = mgr.Context()
	games, session, err := e.loadGames(true)
	if err != nil {
		return err
	}

	opts := tui.Options{
		ProfileName: session.Profile.Name,
		OnSignOut: func() error {
			return doSignOutQuiet(e, session.OwnerID)
		},
	}
	if up, err := storage.New(e.conf); err == nil {
		opts.Uploader = up
	} else {
		utils.Warnf("cover uploads disabled: %v", err)
	}

	model := tui.New(games, opts)
	defer model.Close()
	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(mgr.Context()),
		tea.WithInput(e.stdin()),
		tea.WithOutput(e.stdout),
	)
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if model.SignedOut() {
		_, _ = fmt.Fprintln(e.stdout, "Signed out")
	}
	return nil
}

// doSignOutQuiet ends the session from inside the browser
func doSignOutQuiet(e *env, owner string) error {
	if err := e.provider().SignOut(context.Background()); err != nil {
		return err
	}
	forgetSnapshots(e, owner)
	return nil
}

// newWatchCmd creates the 'watch' subcommand
func newWatchCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the filtered collection every time it changes",
		Long:  "Follow the collection and print the filtered list after every change until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			search, _ := cmd.Flags().GetString("search")
			category, _ := cmd.Flags().GetString("category")
			count, _ := cmd.Flags().GetInt("count")
			if category, err = parseCategory(category); err != nil {
				return err
			}
			return doWatch(e, search, category, count)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("search", "s", "", "Only show titles containing this text")
	cmd.Flags().StringP("category", "c", views.AllCategories, "Only show this genre (All for every genre)")
	cmd.Flags().IntP("count", "n", 0, "Stop after printing this many updates (0 runs until interrupted)")
	return cmd
}

// openBackgroundLog starts the log file of a long-running command and closes
// it on shutdown. The path goes to stderr so stdout stays machine readable.
func openBackgroundLog(e *env, mgr *shutdown.Manager, command string) *utils.BackgroundLogger {
	bl, err := utils.NewBackgroundLogger(command, e.conf.IsBackgroundLoggingEnabled())
	if err != nil {
		utils.Debugf("background log disabled: %v", err)
	}
	if bl.IsEnabled() {
		_, _ = fmt.Fprintf(e.stderr, "Background log: %s\n", bl.GetLogPath())
	}
	mgr.RegisterCleanup("log", func(context.Context) error {
		bl.Close()
		return nil
	})
	return bl
}

// views are delivered latest-wins: a slow terminal skips intermediate ones
func doWatch(e *env, search, category string, count int) error {
	mgr := newShutdownManager(e.ctx)
	defer finish(mgr)

	bl := openBackgroundLog(e, mgr, "watch")

	session, err := e.session()
	if err != nil {
		return err
	}
	store, err := e.openStore(true)
	if err != nil {
		return err
	}
	games := state.NewGameState(store, e.stateOptions()...)
	mgr.RegisterCleanup("state", func(context.Context) error {
		games.Close()
		return nil
	})
	games.SetSearch(search)
	games.SetCategory(category)

	updates := make(chan state.GameView, 1)
	stop := games.Observe(func(v state.GameView) {
		for {
			select {
			case updates <- v:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer stop()

	games.Load(mgr.Context(), session.OwnerID)
	bl.Printf("watching %s (search %q, category %s)", session.OwnerID, search, category)

	printed := 0
	for {
		select {
		case <-mgr.Context().Done():
			bl.Printf("watch stopped: %s", mgr.Reason())
			return nil
		case v := <-updates:
			if v.Loading || v.OwnerID == "" {
				continue
			}
			if err := printWatchView(e, v); err != nil {
				return err
			}
			bl.Printf("printed %d of %d games", len(v.Games), v.Total)
			printed++
			if count > 0 && printed >= count {
				return nil
			}
		}
	}
}

type watchResponse struct {
	Time     string     `json:"time"`
	Games    []gameJSON `json:"games"`
	Count    int        `json:"count"`
	Total    int        `json:"total"`
	Search   string     `json:"search,omitempty"`
	Category string     `json:"category"`
	Error    string     `json:"error,omitempty"`
}

func printWatchView(e *env, v state.GameView) error {
	now := time.Now()
	if e.cfg.Now != nil {
		now = e.cfg.Now()
	}
	if e.jsonOutput {
		return writeJSON(e.stdout, watchResponse{
			Time:     now.UTC().Format(time.RFC3339),
			Games:    gamesToJSON(v.Games),
			Count:    len(v.Games),
			Total:    v.Total,
			Search:   v.Search,
			Category: v.Category,
			Error:    v.ErrorMessage,
		})
	}
	_, _ = fmt.Fprintf(e.stdout, "[%s] ", now.Format("15:04:05"))
	printGameView(e.stdout, v, views.DefaultGameView())
	if v.ErrorMessage != "" {
		_, _ = fmt.Fprintf(e.stdout, "  %s\n", v.ErrorMessage)
	}
	return nil
}

// newServeCmd creates the 'serve' subcommand
func newServeCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the media server for cover image uploads",
		Long:  "Serve the media directory over HTTP. Clients using the http storage driver upload cover images here.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			listen, _ := cmd.Flags().GetString("listen")
			if listen == "" {
				listen = e.conf.GetServerListen()
			}
			return doServe(e, listen)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("listen", "l", "", "Listen address (default from server.listen)")
	return cmd
}

func doServe(e *env, listen string) error {
	mgr := newShutdownManager(e.ctx)
	defer finish(mgr)

	bl := openBackgroundLog(e, mgr, "serve")

	baseURL := e.conf.Storage.BaseURL
	if baseURL == "" {
		baseURL = "http://" + listen + "/media"
	}
	media := storage.NewLocalStore(e.conf.GetMediaDir(), baseURL)
	srv := server.New(media, server.Options{
		MaxUploadBytes: e.conf.GetMaxUploadBytes(),
		Log:            bl,
	})

	return srv.Run(mgr.Context(), listen, func(a net.Addr) {
		_, _ = fmt.Fprintf(e.stdout, "Serving %s on http://%s/media/\n", media.Dir(), a)
		e.done(ResultInfoOnly)
	})
}
