package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"gameshelf/backend"
	"gameshelf/internal/cli/prompt"
	"gameshelf/internal/state"
	"gameshelf/internal/storage"
	"gameshelf/internal/utils"
	"gameshelf/internal/views"
)

// newGameCmd creates the 'game' subcommand for collection management
func newGameCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	gameCmd := &cobra.Command{
		Use:   "game",
		Short: "Manage your game collection",
		Long:  "List, add, update and delete the games in your collection.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	gameCmd.AddCommand(newGameListCmd(stdout, stderr, cfg))
	gameCmd.AddCommand(newGameAddCmd(stdout, stderr, cfg))
	gameCmd.AddCommand(newGameUpdateCmd(stdout, stderr, cfg))
	gameCmd.AddCommand(newGameDeleteCmd(stdout, stderr, cfg))
	gameCmd.AddCommand(newGameUploadCmd(stdout, stderr, cfg))
	gameCmd.AddCommand(newGameGenresCmd(stdout, stderr, cfg))
	gameCmd.AddCommand(newGameViewsCmd(stdout, stderr, cfg))

	return gameCmd
}

// newGameListCmd creates the 'game list' subcommand
func newGameListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List games, optionally filtered",
		Long:    "List the games whose title contains the search text and whose genre matches the category (All shows every genre).",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			search, _ := cmd.Flags().GetString("search")
			category, _ := cmd.Flags().GetString("category")
			viewName, _ := cmd.Flags().GetString("view")
			return doGameList(e, search, category, viewName)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("search", "s", "", "Only show titles containing this text")
	cmd.Flags().StringP("category", "c", views.AllCategories, "Only show this genre (All for every genre)")
	cmd.Flags().StringP("view", "v", views.ViewDefault, "Columns to show (default, all or a custom view)")
	return cmd
}

// parseCategory matches a category selector against All and the genres
func parseCategory(category string) (string, error) {
	if category == "" || strings.EqualFold(category, views.AllCategories) {
		return views.AllCategories, nil
	}
	genre, err := utils.NormalizeGenre(category)
	if err != nil {
		return "", utils.ErrInvalidGenre(category, views.CategoryOptions())
	}
	return genre, nil
}

func doGameList(e *env, search, category, viewName string) error {
	category, err := parseCategory(category)
	if err != nil {
		return err
	}
	layout, err := views.NewLoader(e.viewsDir).LoadView(viewName)
	if err != nil {
		return utils.WrapWithSuggestion(err, "See the available views with 'gameshelf game views'")
	}

	games, _, err := e.loadGames(false)
	if err != nil {
		return err
	}
	games.SetSearch(search)
	games.SetCategory(category)
	view := games.View()
	if view.ErrorMessage != "" {
		return errors.New(view.ErrorMessage)
	}

	if e.jsonOutput {
		return writeJSON(e.stdout, listGamesResponse{
			Games:    gamesToJSON(view.Games),
			Count:    len(view.Games),
			Total:    view.Total,
			Search:   view.Search,
			Category: view.Category,
			Result:   ResultInfoOnly,
		})
	}

	printGameView(e.stdout, view, layout)
	e.done(ResultInfoOnly)
	return nil
}

// printGameView prints the header, the games and the empty-state hints
func printGameView(w io.Writer, view state.GameView, layout *views.View) {
	_, _ = fmt.Fprintf(w, "Games (%d of %d)", len(view.Games), view.Total)
	if view.Search != "" || view.Category != views.AllCategories {
		_, _ = fmt.Fprintf(w, "  search: %q  category: %s", view.Search, view.Category)
	}
	_, _ = fmt.Fprintln(w)

	switch {
	case view.Total == 0:
		_, _ = fmt.Fprintln(w, "  No games yet. Add one with 'gameshelf game add <title>'.")
	case len(view.Games) == 0:
		_, _ = fmt.Fprintln(w, "  No games match the current filter.")
	default:
		views.NewRenderer(layout, w).RenderGames(view.Games)
	}
}

// gameFlags registers the field flags shared by add and update
func gameFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("genre", "g", "", "Genre ("+strings.Join(backend.Genres, ", ")+")")
	cmd.Flags().StringP("status", "s", "", "Play status ("+strings.Join(backend.Statuses, ", ")+")")
	cmd.Flags().IntP("rating", "r", 0, fmt.Sprintf("Rating from 0 to %d", backend.MaxRating))
	cmd.Flags().StringP("category", "c", "", "Category label (default "+backend.DefaultCategory+")")
	cmd.Flags().String("notes", "", "Free-form notes")
	cmd.Flags().String("url", "", "Store or homepage URL")
	cmd.Flags().String("image", "", "Cover image URL")
	cmd.Flags().String("image-file", "", "Local cover image to upload")
}

// applyGameFlags copies every flag the user set onto g
func applyGameFlags(cmd *cobra.Command, g *backend.Game) (changed bool, err error) {
	flags := cmd.Flags()
	for _, name := range []string{"genre", "status", "rating", "category", "notes", "url", "image"} {
		if !flags.Changed(name) {
			continue
		}
		changed = true
		switch name {
		case "genre":
			value, _ := flags.GetString(name)
			if g.Genre, err = utils.NormalizeGenre(value); err != nil {
				return false, err
			}
		case "status":
			value, _ := flags.GetString(name)
			if g.Status, err = utils.NormalizeStatus(value); err != nil {
				return false, err
			}
		case "rating":
			g.Rating, _ = flags.GetInt(name)
			if err = utils.ValidateRating(g.Rating); err != nil {
				return false, err
			}
		case "category":
			g.Category, _ = flags.GetString(name)
		case "notes":
			g.Notes, _ = flags.GetString(name)
		case "url":
			g.GameURL, _ = flags.GetString(name)
		case "image":
			g.ImageURL, _ = flags.GetString(name)
		}
	}
	if flags.Changed("image-file") {
		changed = true
	}
	return changed, nil
}

// checkCategory verifies that a game category is the default or one of the
// owner's custom categories, and returns its stored spelling.
func checkCategory(e *env, ownerID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, backend.DefaultCategory) {
		return backend.DefaultCategory, nil
	}
	categories, err := e.loadCategories(ownerID)
	if err != nil {
		return "", err
	}
	c := backend.FindCategoryByName(categories.View().Categories, name)
	if c == nil {
		return "", utils.ErrCategoryNotFound(name)
	}
	return c.Name, nil
}

// uploadCover uploads localPath and returns the image URL to store. A
// failed upload keeps previous and is reported as a warning.
func uploadCover(e *env, localPath, previous string) (string, string) {
	if localPath == "" {
		return previous, ""
	}
	up, err := storage.New(e.conf)
	if err != nil {
		e.warn(err)
		return previous, err.Error()
	}
	url, err := storage.UploadOrKeep(e.ctx, up, localPath, previous)
	if err != nil {
		e.warn(err)
		msg, _, _ := strings.Cut(err.Error(), "\n")
		return url, msg
	}
	return url, ""
}

// newGameAddCmd creates the 'game add' subcommand
func newGameAddCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a game to your collection",
		Long:  "Add a game. Without a title an interactive form asks for every field.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			games, session, err := e.loadGames(false)
			if err != nil {
				return err
			}

			var g backend.Game
			coverPath, _ := cmd.Flags().GetString("image-file")
			if len(args) == 1 {
				g.Title = strings.TrimSpace(args[0])
				if _, err := applyGameFlags(cmd, &g); err != nil {
					return err
				}
			} else if e.interactive() {
				form := &prompt.GameForm{Reader: e.stdin(), Writer: stdout}
				fields, err := form.Run(nil)
				if err != nil {
					return err
				}
				g = fields.Game
				coverPath = fields.CoverPath
			} else {
				return utils.ErrEmptyTitle("game")
			}

			if g.Category, err = checkCategory(e, session.OwnerID, g.Category); err != nil {
				return err
			}
			return doGameAdd(e, games, g.WithDefaults(), coverPath)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	gameFlags(cmd)
	return cmd
}

func doGameAdd(e *env, games *state.GameState, g backend.Game, coverPath string) error {
	var warning string
	g.ImageURL, warning = uploadCover(e, coverPath, g.ImageURL)

	games.BeginAdd()
	id, err := games.Save(e.ctx, g)
	if err != nil {
		return err
	}
	g.ID = id

	if e.jsonOutput {
		return writeJSON(e.stdout, gameActionResponse{Action: "add", Game: gameToJSON(g), Warning: warning, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(e.stdout, "Added game: %s\n", g.Title)
	e.done(ResultActionCompleted)
	return nil
}

// newGameUpdateCmd creates the 'game update' subcommand
func newGameUpdateCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [title or id]",
		Short: "Update a game",
		Long:  "Update the fields given as flags. Without flags an interactive form shows the current values.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			games, session, err := e.loadGames(false)
			if err != nil {
				return err
			}
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			current, err := findGame(e, games, ref)
			if err != nil {
				return err
			}

			updated := current
			if title, _ := cmd.Flags().GetString("title"); cmd.Flags().Changed("title") {
				updated.Title = strings.TrimSpace(title)
			}
			changed, err := applyGameFlags(cmd, &updated)
			if err != nil {
				return err
			}
			changed = changed || cmd.Flags().Changed("title")
			coverPath, _ := cmd.Flags().GetString("image-file")

			if !changed {
				if !e.interactive() {
					return utils.WrapWithSuggestion(errors.New("nothing to update"),
						"Pass the fields to change, e.g. --status Completed --rating 5")
				}
				form := &prompt.GameForm{Reader: e.stdin(), Writer: stdout}
				fields, err := form.Run(&current)
				if err != nil {
					return err
				}
				updated = fields.Game
				coverPath = fields.CoverPath
			}

			if updated.Category != current.Category {
				if updated.Category, err = checkCategory(e, session.OwnerID, updated.Category); err != nil {
					return err
				}
			}
			return doGameUpdate(e, games, current, updated, coverPath)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("title", "t", "", "New title")
	gameFlags(cmd)
	return cmd
}

func doGameUpdate(e *env, games *state.GameState, current, updated backend.Game, coverPath string) error {
	var warning string
	updated = updated.WithDefaults()
	updated.ImageURL, warning = uploadCover(e, coverPath, updated.ImageURL)

	games.BeginEdit(current)
	if _, err := games.Save(e.ctx, updated); err != nil {
		return err
	}

	if e.jsonOutput {
		return writeJSON(e.stdout, gameActionResponse{Action: "update", Game: gameToJSON(updated), Warning: warning, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(e.stdout, "Updated game: %s\n", updated.Title)
	e.done(ResultActionCompleted)
	return nil
}

// newGameDeleteCmd creates the 'game delete' subcommand
func newGameDeleteCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:     "delete [title or id]",
		Aliases: []string{"rm"},
		Short:   "Delete a game",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			games, _, err := e.loadGames(false)
			if err != nil {
				return err
			}
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			g, err := findGame(e, games, ref)
			if err != nil {
				return err
			}
			if err := games.Delete(e.ctx, g.ID); err != nil {
				return err
			}

			if e.jsonOutput {
				return writeJSON(stdout, gameActionResponse{Action: "delete", Game: gameToJSON(g), Result: ResultActionCompleted})
			}
			_, _ = fmt.Fprintf(stdout, "Deleted game: %s\n", g.Title)
			e.done(ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// findGame resolves ref to a single game: an exact ID or title first, then
// a unique title match. Several matches ask the user to pick one when
// prompts are allowed.
func findGame(e *env, games *state.GameState, ref string) (backend.Game, error) {
	all := games.View().Games

	if ref == "" {
		if !e.interactive() {
			return backend.Game{}, errors.New("game title or ID is required")
		}
		selector := &prompt.GameSelector{
			Games:  all,
			Prompt: "Select a game:",
			Mode:   views.ParseMatchMode(e.conf.GetMatchMode()),
			Reader: e.stdin(),
			Writer: e.stdout,
		}
		g, err := selector.Run()
		if err != nil {
			return backend.Game{}, err
		}
		return *g, nil
	}

	if g, ok := games.Find(ref); ok {
		return g, nil
	}

	matches := views.RecomputeWith(all, views.Filter{
		Search:   ref,
		Category: views.AllCategories,
		Mode:     views.ParseMatchMode(e.conf.GetMatchMode()),
	})
	switch len(matches) {
	case 0:
		return backend.Game{}, utils.ErrGameNotFound(ref)
	case 1:
		return matches[0], nil
	}

	if !e.interactive() {
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, fmt.Sprintf("  - %s", m.Title))
		}
		return backend.Game{}, fmt.Errorf("multiple games match '%s':\n%s", ref, strings.Join(names, "\n"))
	}
	selector := &prompt.GameSelector{
		Games:  matches,
		Prompt: fmt.Sprintf("Multiple games match '%s':", ref),
		Reader: e.stdin(),
		Writer: e.stdout,
	}
	g, err := selector.Run()
	if err != nil {
		return backend.Game{}, err
	}
	return *g, nil
}

type uploadResponse struct {
	URL    string `json:"url"`
	Result string `json:"result"`
}

// newGameUploadCmd creates the 'game upload' subcommand
func newGameUploadCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [file]",
		Short: "Upload a cover image and print its URL",
		Long:  "Upload a local image through the configured storage driver and print the URL to store on a game. When the upload fails the --previous URL is printed instead.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			previous, _ := cmd.Flags().GetString("previous")
			up, err := storage.New(e.conf)
			if err != nil {
				return err
			}
			url, err := storage.UploadOrKeep(e.ctx, up, args[0], previous)
			if err != nil {
				if url != "" && !e.jsonOutput {
					_, _ = fmt.Fprintln(stdout, url)
				}
				return err
			}

			if e.jsonOutput {
				return writeJSON(stdout, uploadResponse{URL: url, Result: ResultActionCompleted})
			}
			_, _ = fmt.Fprintln(stdout, url)
			e.done(ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("previous", "", "URL to print when the upload fails")
	return cmd
}

// newGameGenresCmd creates the 'game genres' subcommand
func newGameGenresCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List the genre and status options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			if jsonOutput {
				return writeJSON(stdout, struct {
					Categories []string `json:"categories"`
					Statuses   []string `json:"statuses"`
					Result     string   `json:"result"`
				}{views.CategoryOptions(), backend.Statuses, ResultInfoOnly})
			}

			_, _ = fmt.Fprintln(stdout, "Categories:")
			for _, c := range views.CategoryOptions() {
				_, _ = fmt.Fprintf(stdout, "  %s\n", c)
			}
			_, _ = fmt.Fprintln(stdout, "Statuses:")
			for _, s := range backend.Statuses {
				_, _ = fmt.Fprintf(stdout, "  %s\n", s)
			}
			if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt || cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newGameViewsCmd creates the 'game views' subcommand
func newGameViewsCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "views",
		Short: "List the column layouts for 'game list --view'",
		Long:  "List the built-in views and the custom ones stored as YAML files in the views folder next to the config file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			if setupFolder, _ := cmd.Flags().GetBool("setup"); setupFolder {
				created, err := views.SetupViewsFolder(e.viewsDir)
				if err != nil {
					return err
				}
				if created && !e.jsonOutput {
					_, _ = fmt.Fprintf(stdout, "Created %s with an example view\n", e.viewsDir)
				}
			}

			infos, err := views.NewLoader(e.viewsDir).ListViews()
			if err != nil {
				return err
			}
			if e.jsonOutput {
				type viewJSON struct {
					Name        string `json:"name"`
					Description string `json:"description,omitempty"`
					BuiltIn     bool   `json:"built_in"`
				}
				out := make([]viewJSON, 0, len(infos))
				for _, i := range infos {
					out = append(out, viewJSON{i.Name, i.Description, i.BuiltIn})
				}
				return writeJSON(stdout, struct {
					Views  []viewJSON `json:"views"`
					Result string     `json:"result"`
				}{out, ResultInfoOnly})
			}

			_, _ = fmt.Fprintln(stdout, "Views:")
			for _, i := range infos {
				kind := "custom"
				if i.BuiltIn {
					kind = "built-in"
				}
				_, _ = fmt.Fprintf(stdout, "  %-12s %-9s %s\n", i.Name, kind, i.Description)
			}
			e.done(ResultInfoOnly)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().Bool("setup", false, "Create the views folder with an example view")
	return cmd
}
