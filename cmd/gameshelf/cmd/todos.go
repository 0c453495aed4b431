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
	"gameshelf/internal/utils"
	"gameshelf/internal/views"
)

// newTodoCmd creates the 'todo' subcommand for the todo list
func newTodoCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	todoCmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage your gaming todo list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	todoCmd.AddCommand(newTodoListCmd(stdout, stderr, cfg))
	todoCmd.AddCommand(newTodoAddCmd(stdout, stderr, cfg))
	todoCmd.AddCommand(newTodoCompleteCmd(stdout, stderr, cfg, "done", true))
	todoCmd.AddCommand(newTodoCompleteCmd(stdout, stderr, cfg, "undo", false))
	todoCmd.AddCommand(newTodoToggleCmd(stdout, stderr, cfg))
	todoCmd.AddCommand(newTodoRenameCmd(stdout, stderr, cfg))
	todoCmd.AddCommand(newTodoPriorityCmd(stdout, stderr, cfg))
	todoCmd.AddCommand(newTodoDeleteCmd(stdout, stderr, cfg))

	return todoCmd
}

// newTodoListCmd creates the 'todo list' subcommand
func newTodoListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List todos",
		Long:    "List pending todos, newest first. --all includes completed ones.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			todos, err := e.loadTodos()
			if err != nil {
				return err
			}
			all, _ := cmd.Flags().GetBool("all")
			search, _ := cmd.Flags().GetString("search")
			todos.SetShowCompleted(all)
			todos.SetSearch(search)
			view := todos.View()
			if view.ErrorMessage != "" {
				return errors.New(view.ErrorMessage)
			}

			if e.jsonOutput {
				out := make([]todoJSON, 0, len(view.Todos))
				for _, t := range view.Todos {
					out = append(out, todoToJSON(t))
				}
				return writeJSON(stdout, listTodosResponse{
					Todos:   out,
					Count:   len(out),
					Total:   view.Total,
					Pending: view.Pending,
					Result:  ResultInfoOnly,
				})
			}

			_, _ = fmt.Fprintf(stdout, "Todos (%d pending, %d total)\n", view.Pending, view.Total)
			switch {
			case view.Total == 0:
				_, _ = fmt.Fprintln(stdout, "  Nothing to do. Add a todo with 'gameshelf todo add <title>'.")
			case len(view.Todos) == 0:
				_, _ = fmt.Fprintln(stdout, "  No todos match the current filter.")
			default:
				views.NewRenderer(views.DefaultTodoView(), stdout).RenderTodos(view.Todos)
			}
			e.done(ResultInfoOnly)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().BoolP("all", "a", false, "Include completed todos")
	cmd.Flags().StringP("search", "s", "", "Only show titles containing this text")
	return cmd
}

// newTodoAddCmd creates the 'todo add' subcommand
func newTodoAddCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer e.close()

			flag, _ := cmd.Flags().GetString("priority")
			priority, err := utils.ParsePriority(flag)
			if err != nil {
				return err
			}
			todos, err := e.loadTodos()
			if err != nil {
				return err
			}

			title := strings.TrimSpace(strings.Join(args, " "))
			id, err := todos.Add(e.ctx, title, priority)
			if err != nil {
				return err
			}
			return reportTodo(e, "add", backend.Todo{ID: id, Title: title, Priority: priority}, "Added todo: %s\n")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("priority", "p", "medium", "Priority (low, medium, high)")
	return cmd
}

// newTodoCompleteCmd creates 'todo done' and 'todo undo'
func newTodoCompleteCmd(stdout, stderr io.Writer, cfg *Config, action string, completed bool) *cobra.Command {
	short := "Mark a todo as done"
	format := "Completed todo: %s\n"
	if !completed {
		short = "Mark a todo as pending again"
		format = "Reopened todo: %s\n"
	}
	return &cobra.Command{
		Use:   action + " [title or id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTodo(cmd, cfg, stdout, stderr, args, action, func(e *env, todos *state.TodoState, t backend.Todo) error {
				if err := todos.SetCompleted(e.ctx, t.ID, completed); err != nil {
					return err
				}
				t.Completed = completed
				return reportTodo(e, action, t, format)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newTodoToggleCmd creates the 'todo toggle' subcommand
func newTodoToggleCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle [title or id]",
		Short: "Flip a todo between done and pending",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTodo(cmd, cfg, stdout, stderr, args, "toggle", func(e *env, todos *state.TodoState, t backend.Todo) error {
				if err := todos.Toggle(e.ctx, t.ID); err != nil {
					return err
				}
				t.Completed = !t.Completed
				format := "Reopened todo: %s\n"
				if t.Completed {
					format = "Completed todo: %s\n"
				}
				return reportTodo(e, "toggle", t, format)
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newTodoRenameCmd creates the 'todo rename' subcommand
func newTodoRenameCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rename [title or id] [new title]",
		Short: "Rename a todo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTodo(cmd, cfg, stdout, stderr, args[:1], "rename", func(e *env, todos *state.TodoState, t backend.Todo) error {
				title := strings.TrimSpace(args[1])
				if err := todos.Rename(e.ctx, t.ID, title); err != nil {
					return err
				}
				t.Title = title
				return reportTodo(e, "rename", t, "Renamed todo: %s\n")
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newTodoPriorityCmd creates the 'todo priority' subcommand
func newTodoPriorityCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "priority [title or id] [low|medium|high]",
		Short: "Change the priority of a todo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := utils.ParsePriority(args[1])
			if err != nil {
				return err
			}
			return withTodo(cmd, cfg, stdout, stderr, args[:1], "priority", func(e *env, todos *state.TodoState, t backend.Todo) error {
				if err := todos.SetPriority(e.ctx, t.ID, priority); err != nil {
					return err
				}
				t.Priority = priority
				return reportTodo(e, "priority", t, "Updated todo: %s\n")
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newTodoDeleteCmd creates the 'todo delete' subcommand
func newTodoDeleteCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:     "delete [title or id]",
		Aliases: []string{"rm"},
		Short:   "Delete a todo",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTodo(cmd, cfg, stdout, stderr, args, "delete", func(e *env, todos *state.TodoState, t backend.Todo) error {
				if err := todos.Delete(e.ctx, t.ID); err != nil {
					return err
				}
				return reportTodo(e, "delete", t, "Deleted todo: %s\n")
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// withTodo loads the todo list, resolves the todo named in args and runs fn
func withTodo(cmd *cobra.Command, cfg *Config, stdout, stderr io.Writer, args []string, action string,
	fn func(*env, *state.TodoState, backend.Todo) error) error {
	e, err := setup(cmd, cfg, stdout, stderr)
	if err != nil {
		return err
	}
	defer e.close()

	todos, err := e.loadTodos()
	if err != nil {
		return err
	}
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}
	t, err := findTodo(e, todos, ref, action)
	if err != nil {
		return err
	}
	return fn(e, todos, t)
}

// findTodo resolves ref like findGame. Without a ref the selector only
// offers the todos the action applies to.
func findTodo(e *env, todos *state.TodoState, ref, action string) (backend.Todo, error) {
	todos.SetShowCompleted(true)
	all := todos.View().Todos

	var candidates []backend.Todo
	switch {
	case ref == "":
		if !e.interactive() {
			return backend.Todo{}, errors.New("todo title or ID is required")
		}
		candidates = prompt.FilterTodosByAction(all, action, false)
	default:
		if t, ok := todos.Find(ref); ok {
			return t, nil
		}
		candidates = views.RecomputeTodos(all, ref, true)
		switch len(candidates) {
		case 0:
			return backend.Todo{}, utils.ErrTodoNotFound(ref)
		case 1:
			return candidates[0], nil
		}
		if !e.interactive() {
			names := make([]string, 0, len(candidates))
			for _, c := range candidates {
				names = append(names, fmt.Sprintf("  - %s", c.Title))
			}
			return backend.Todo{}, fmt.Errorf("multiple todos match '%s':\n%s", ref, strings.Join(names, "\n"))
		}
	}

	selector := &prompt.TodoSelector{
		Todos:  candidates,
		Prompt: "Select a todo:",
		Reader: e.stdin(),
		Writer: e.stdout,
	}
	t, err := selector.Run()
	if err != nil {
		return backend.Todo{}, err
	}
	return *t, nil
}

func reportTodo(e *env, action string, t backend.Todo, format string) error {
	if e.jsonOutput {
		return writeJSON(e.stdout, todoActionResponse{Action: action, Todo: todoToJSON(t), Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(e.stdout, format, t.Title)
	e.done(ResultActionCompleted)
	return nil
}

// newCategoryCmd creates the 'category' subcommand
func newCategoryCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	categoryCmd := &cobra.Command{
		Use:   "category",
		Short: "Manage custom game categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	categoryCmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List categories",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCategories(cmd, cfg, stdout, stderr, func(e *env, categories *state.CategoryState) error {
				view := categories.View()
				names := []string{backend.DefaultCategory}
				for _, c := range view.Categories {
					names = append(names, c.Name)
				}
				if e.jsonOutput {
					return writeJSON(stdout, struct {
						Categories []string `json:"categories"`
						Result     string   `json:"result"`
					}{names, ResultInfoOnly})
				}
				_, _ = fmt.Fprintln(stdout, "Categories:")
				for _, name := range names {
					_, _ = fmt.Fprintf(stdout, "  %s\n", name)
				}
				e.done(ResultInfoOnly)
				return nil
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	categoryCmd.AddCommand(&cobra.Command{
		Use:   "add [name]",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCategories(cmd, cfg, stdout, stderr, func(e *env, categories *state.CategoryState) error {
				name := strings.TrimSpace(args[0])
				if strings.EqualFold(name, backend.DefaultCategory) {
					return utils.ErrCategoryExists(name)
				}
				if _, err := categories.Add(e.ctx, name); err != nil {
					return err
				}
				return reportCategory(e, "add", name, "Created category: %s\n")
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	categoryCmd.AddCommand(&cobra.Command{
		Use:     "delete [name]",
		Aliases: []string{"rm"},
		Short:   "Delete a category",
		Long:    "Delete a custom category. Games keep their category label.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCategories(cmd, cfg, stdout, stderr, func(e *env, categories *state.CategoryState) error {
				if err := categories.Delete(e.ctx, args[0]); err != nil {
					return err
				}
				return reportCategory(e, "delete", args[0], "Deleted category: %s\n")
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return categoryCmd
}

func withCategories(cmd *cobra.Command, cfg *Config, stdout, stderr io.Writer, fn func(*env, *state.CategoryState) error) error {
	e, err := setup(cmd, cfg, stdout, stderr)
	if err != nil {
		return err
	}
	defer e.close()

	session, err := e.session()
	if err != nil {
		return err
	}
	categories, err := e.loadCategories(session.OwnerID)
	if err != nil {
		return err
	}
	return fn(e, categories)
}

func reportCategory(e *env, action, name, format string) error {
	if e.jsonOutput {
		return writeJSON(e.stdout, struct {
			Action   string `json:"action"`
			Category string `json:"category"`
			Result   string `json:"result"`
		}{action, name, ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(e.stdout, format, name)
	e.done(ResultActionCompleted)
	return nil
}
