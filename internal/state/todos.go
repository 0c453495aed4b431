package state

import (
	"context"
	"strings"

	"gameshelf/backend"
	"gameshelf/internal/utils"
	"gameshelf/internal/views"
)

// TodoView is the derived state of the todo list.
type TodoView struct {
	OwnerID       string
	Loading       bool
	Todos         []backend.Todo
	Total         int
	Pending       int
	ErrorMessage  string
	Search        string
	ShowCompleted bool
}

// TodoState is the state holder behind the todo list.
type TodoState struct {
	store backend.TodoStore
	h     *holder[backend.Todo, TodoView]

	// guarded by h.mu
	search        string
	showCompleted bool
	derived       []backend.Todo
	pending       int
}

// NewTodoState creates an empty holder. Completed todos are shown by default.
func NewTodoState(store backend.TodoStore, opts ...Option) *TodoState {
	o := buildOptions(opts)
	s := &TodoState{
		store:         store,
		showCompleted: true,
		derived:       []backend.Todo{},
	}
	s.h = newHolder[backend.Todo, TodoView](store.SubscribeTodos)
	s.h.recompute = func(items []backend.Todo) {
		s.derived = views.RecomputeTodos(items, s.search, s.showCompleted)
		s.pending = 0
		for _, t := range items {
			if !t.Completed {
				s.pending++
			}
		}
	}
	s.h.view = s.viewLocked
	if o.snapshots != nil {
		snapshots := o.snapshots
		s.h.preload = func(owner string) ([]backend.Todo, bool) {
			todos, _, ok := snapshots.LoadTodos(owner)
			return todos, ok
		}
		s.h.persist = func(owner string, todos []backend.Todo) {
			if err := snapshots.SaveTodos(owner, todos); err != nil {
				utils.Warnf("failed to persist todo snapshot: %v", err)
			}
		}
	}
	return s
}

func (s *TodoState) viewLocked() TodoView {
	v := TodoView{
		OwnerID:       s.h.ownerID,
		Loading:       s.h.loading,
		Todos:         append([]backend.Todo{}, s.derived...),
		Total:         s.h.cache.Len(),
		Pending:       s.pending,
		ErrorMessage:  s.h.errMsg,
		Search:        s.search,
		ShowCompleted: s.showCompleted,
	}
	return v
}

// Load subscribes to ownerID's todos, releasing any earlier subscription.
func (s *TodoState) Load(ctx context.Context, ownerID string) {
	s.h.load(ctx, ownerID)
}

// SetSearch changes the search text and recomputes from the cache.
func (s *TodoState) SetSearch(text string) {
	s.h.recomputeWith(func() { s.search = text })
}

// SetShowCompleted toggles whether completed todos are listed.
func (s *TodoState) SetShowCompleted(show bool) {
	s.h.recomputeWith(func() { s.showCompleted = show })
}

// Add creates a todo for the loaded owner.
func (s *TodoState) Add(ctx context.Context, title string, priority backend.Priority) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", s.fail("add", utils.ErrEmptyTitle("todo"))
	}
	owner := s.h.owner()
	if owner == "" {
		return "", s.fail("add", utils.ErrNotSignedIn())
	}
	if priority == "" {
		priority = backend.PriorityMedium
	}
	id, err := s.store.AddTodo(ctx, owner, title, priority)
	if err != nil {
		return "", s.fail("add", err)
	}
	s.ClearError()
	return id, nil
}

// Toggle flips the completion of the todo with the given ID, using the
// cached value as the current one.
func (s *TodoState) Toggle(ctx context.Context, id string) error {
	t := backend.FindTodo(s.h.cacheItems(), id)
	if t == nil {
		return s.fail("update", utils.ErrTodoNotFound(id))
	}
	return s.SetCompleted(ctx, id, !t.Completed)
}

// SetCompleted marks the todo done or not done.
func (s *TodoState) SetCompleted(ctx context.Context, id string, completed bool) error {
	owner, err := s.writeOwner("update")
	if err != nil {
		return err
	}
	return s.write("update", s.store.SetTodoCompleted(ctx, owner, id, completed))
}

// Rename replaces the todo's title.
func (s *TodoState) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return s.fail("update", utils.ErrEmptyTitle("todo"))
	}
	owner, err := s.writeOwner("update")
	if err != nil {
		return err
	}
	return s.write("update", s.store.UpdateTodoTitle(ctx, owner, id, title))
}

// SetPriority changes the todo's priority.
func (s *TodoState) SetPriority(ctx context.Context, id string, priority backend.Priority) error {
	owner, err := s.writeOwner("update")
	if err != nil {
		return err
	}
	return s.write("update", s.store.UpdateTodoPriority(ctx, owner, id, priority))
}

// Delete removes the todo.
func (s *TodoState) Delete(ctx context.Context, id string) error {
	owner, err := s.writeOwner("delete")
	if err != nil {
		return err
	}
	return s.write("delete", s.store.DeleteTodo(ctx, owner, id))
}

// writeOwner returns the loaded owner that scopes every write.
func (s *TodoState) writeOwner(action string) (string, error) {
	owner := s.h.owner()
	if owner == "" {
		return "", s.fail(action, utils.ErrNotSignedIn())
	}
	return owner, nil
}

func (s *TodoState) write(action string, err error) error {
	if err != nil {
		return s.fail(action, err)
	}
	s.ClearError()
	return nil
}

func (s *TodoState) fail(action string, err error) error {
	s.h.setError(writeMessage(action, err))
	return err
}

// Find looks a todo up in the cache by ID or title.
func (s *TodoState) Find(ref string) (backend.Todo, bool) {
	t := backend.FindTodo(s.h.cacheItems(), ref)
	if t == nil {
		return backend.Todo{}, false
	}
	return *t, true
}

// ClearError resets the error message field.
func (s *TodoState) ClearError() {
	s.h.setError("")
}

// WaitLoaded blocks until the first live snapshot for the loaded owner has
// been applied, or ctx is done.
func (s *TodoState) WaitLoaded(ctx context.Context) error {
	return s.h.wait(ctx)
}

// View returns the current view.
func (s *TodoState) View() TodoView {
	return s.h.current()
}

// Observe registers fn to receive every new view.
func (s *TodoState) Observe(fn func(TodoView)) func() {
	return s.h.observe(fn)
}

// Close releases the subscription.
func (s *TodoState) Close() {
	s.h.close()
}

// CategoryView lists the owner's custom categories.
type CategoryView struct {
	OwnerID      string
	Loading      bool
	Categories   []backend.Category
	ErrorMessage string
}

// CategoryState keeps the live category list.
type CategoryState struct {
	store backend.CategoryStore
	h     *holder[backend.Category, CategoryView]
}

// NewCategoryState creates an empty holder.
func NewCategoryState(store backend.CategoryStore, opts ...Option) *CategoryState {
	o := buildOptions(opts)
	s := &CategoryState{store: store}
	s.h = newHolder[backend.Category, CategoryView](store.SubscribeCategories)
	s.h.recompute = func([]backend.Category) {}
	s.h.view = func() CategoryView {
		return CategoryView{
			OwnerID:      s.h.ownerID,
			Loading:      s.h.loading,
			Categories:   s.h.cache.Items(),
			ErrorMessage: s.h.errMsg,
		}
	}
	if o.snapshots != nil {
		snapshots := o.snapshots
		s.h.preload = func(owner string) ([]backend.Category, bool) {
			categories, _, ok := snapshots.LoadCategories(owner)
			return categories, ok
		}
		s.h.persist = func(owner string, categories []backend.Category) {
			if err := snapshots.SaveCategories(owner, categories); err != nil {
				utils.Warnf("failed to persist category snapshot: %v", err)
			}
		}
	}
	return s
}

// Load subscribes to ownerID's categories.
func (s *CategoryState) Load(ctx context.Context, ownerID string) {
	s.h.load(ctx, ownerID)
}

// Add creates a category. Names are unique per owner, compared without case.
func (s *CategoryState) Add(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", s.fail("add", utils.ErrEmptyTitle("category"))
	}
	owner := s.h.owner()
	if owner == "" {
		return "", s.fail("add", utils.ErrNotSignedIn())
	}
	if backend.FindCategoryByName(s.h.cacheItems(), name) != nil {
		return "", s.fail("add", utils.ErrCategoryExists(name))
	}
	id, err := s.store.AddCategory(ctx, owner, name)
	if err != nil {
		return "", s.fail("add", err)
	}
	s.h.setError("")
	return id, nil
}

// Delete removes the category with the given name.
func (s *CategoryState) Delete(ctx context.Context, name string) error {
	owner := s.h.owner()
	if owner == "" {
		return s.fail("delete", utils.ErrNotSignedIn())
	}
	c := backend.FindCategoryByName(s.h.cacheItems(), name)
	if c == nil {
		return s.fail("delete", utils.ErrCategoryNotFound(name))
	}
	if err := s.store.DeleteCategory(ctx, owner, c.ID); err != nil {
		return s.fail("delete", err)
	}
	s.h.setError("")
	return nil
}

func (s *CategoryState) fail(action string, err error) error {
	s.h.setError(writeMessage(action, err))
	return err
}

// WaitLoaded blocks until the first live snapshot has been applied.
func (s *CategoryState) WaitLoaded(ctx context.Context) error {
	return s.h.wait(ctx)
}

// View returns the current view.
func (s *CategoryState) View() CategoryView {
	return s.h.current()
}

// Observe registers fn to receive every new view.
func (s *CategoryState) Observe(fn func(CategoryView)) func() {
	return s.h.observe(fn)
}

// Close releases the subscription.
func (s *CategoryState) Close() {
	s.h.close()
}
