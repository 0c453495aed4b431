package backend

import "testing"

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in     string
		want   Priority
		wantOK bool
	}{
		{"", PriorityMedium, true},
		{"low", PriorityLow, true},
		{" High ", PriorityHigh, true},
		{"MEDIUM", PriorityMedium, true},
		{"urgent", "", false},
	}
	for _, tt := range tests {
		got, ok := ParsePriority(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParsePriority(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestGameWithDefaults(t *testing.T) {
	g := Game{Title: "Halo"}.WithDefaults()
	if g.Status != "Playing" || g.Category != "General" || g.Genre != "Action" {
		t.Errorf("WithDefaults = %+v", g)
	}

	custom := Game{Status: "Dropped", Category: "Backlog", Genre: "RPG"}.WithDefaults()
	if custom.Status != "Dropped" || custom.Category != "Backlog" || custom.Genre != "RPG" {
		t.Errorf("WithDefaults overwrote fields: %+v", custom)
	}
}

func TestFindGame(t *testing.T) {
	games := []Game{
		{ID: "1", Title: "Halo"},
		{ID: "2", Title: "Zelda"},
	}

	if g := FindGame(games, "2"); g == nil || g.Title != "Zelda" {
		t.Errorf("FindGame by ID = %v", g)
	}
	if g := FindGame(games, "halo"); g == nil || g.ID != "1" {
		t.Errorf("FindGame by title = %v", g)
	}
	if g := FindGame(games, "Doom"); g != nil {
		t.Errorf("FindGame(Doom) = %v, want nil", g)
	}
}

func TestFindTodoAndCategory(t *testing.T) {
	todos := []Todo{{ID: "t1", Title: "Buy milk"}}
	if td := FindTodo(todos, "BUY MILK"); td == nil || td.ID != "t1" {
		t.Errorf("FindTodo = %v", td)
	}

	cats := []Category{{ID: "c1", Name: "Backlog"}}
	if c := FindCategoryByName(cats, "backlog"); c == nil || c.ID != "c1" {
		t.Errorf("FindCategoryByName = %v", c)
	}
	if c := FindCategoryByName(cats, "none"); c != nil {
		t.Errorf("expected nil, got %v", c)
	}
}

func TestGenerateIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if seen[id] {
			t.Fatalf("duplicate ID %s", id)
		}
		seen[id] = true
	}
}
