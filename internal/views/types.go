package views

// DefaultDateFormat is the standard date format used throughout the views package
const DefaultDateFormat = "2006-01-02"

// View is a column layout for printing games or todos
type View struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Fields      []Field `yaml:"fields"`
}

// Field represents a column of a view
type Field struct {
	Name     string `yaml:"name"`
	Width    int    `yaml:"width,omitempty"`
	Align    string `yaml:"align,omitempty"`  // left, center, right
	Format   string `yaml:"format,omitempty"` // for dates
	Truncate bool   `yaml:"truncate,omitempty"`
}

// GameFields lists the column names a game view may use
var GameFields = []string{"title", "genre", "status", "rating", "category", "notes", "image", "url", "id"}

// TodoFields lists the column names a todo view may use
var TodoFields = []string{"done", "priority", "title", "created", "id"}

// DefaultGameView is the layout used by `game list`
func DefaultGameView() *View {
	return &View{
		Name: "games",
		Fields: []Field{
			{Name: "title", Width: 28, Truncate: true},
			{Name: "genre", Width: 10},
			{Name: "status", Width: 12},
			{Name: "rating", Width: 5},
			{Name: "category"},
		},
	}
}

// DetailedGameView shows every stored field, one game per line
func DetailedGameView() *View {
	return &View{
		Name: "games-all",
		Fields: []Field{
			{Name: "id"},
			{Name: "title"},
			{Name: "genre"},
			{Name: "status"},
			{Name: "rating"},
			{Name: "category"},
			{Name: "notes"},
			{Name: "image"},
			{Name: "url"},
		},
	}
}

// DefaultTodoView is the layout used by `todo list`
func DefaultTodoView() *View {
	return &View{
		Name: "todos",
		Fields: []Field{
			{Name: "done", Width: 6},
			{Name: "priority", Width: 8},
			{Name: "title"},
		},
	}
}
