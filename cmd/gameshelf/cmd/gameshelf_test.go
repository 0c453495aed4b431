package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gameshelf/backend"
	"gameshelf/internal/utils"
)

// =============================================================================
// Core CLI Tests
// These tests verify basic CLI functionality: help, version, flags, and arg parsing.
// Feature-specific CLI tests are co-located with their backend code:
// - Game/Todo/Category commands: backend/sqlite/cli_test.go
// =============================================================================

// --- Help and Version Tests ---

// TestHelpFlagCoreCLI verifies that --help displays usage information
func TestHelpFlagCoreCLI(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"--help"}, &stdout, &stderr, nil)

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}

	output := stdout.String()
	if !strings.Contains(output, "gameshelf") {
		t.Errorf("help output should contain 'gameshelf', got: %s", output)
	}
	if !strings.Contains(output, "Usage:") {
		t.Errorf("help output should contain 'Usage:', got: %s", output)
	}
	for _, sub := range []string{"game", "todo", "category", "signin", "browse", "watch", "serve"} {
		if !strings.Contains(output, sub) {
			t.Errorf("help output should list %q", sub)
		}
	}
}

// TestNoArgsShowsHelpCoreCLI verifies that running without a command prints help
func TestNoArgsShowsHelpCoreCLI(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{}, &stdout, &stderr, nil)

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Available Commands:") {
		t.Errorf("expected command list, got: %s", stdout.String())
	}
}

// TestVersionFlagCoreCLI verifies that --version displays version string
func TestVersionFlagCoreCLI(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"--version"}, &stdout, &stderr, nil)

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}

	output := stdout.String()
	if !strings.Contains(output, "gameshelf") || !strings.Contains(output, Version) {
		t.Errorf("version output should contain name and version, got: %s", output)
	}
}

// TestVersionCommand verifies that 'gameshelf version' displays build information
func TestVersionCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"version"}, &stdout, &stderr, nil)

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}

	output := stdout.String()
	for _, want := range []string{"Version:", "Commit:", "Build date:"} {
		if !strings.Contains(output, want) {
			t.Errorf("version output should contain %q, got: %s", want, output)
		}
	}
}

// TestVersionJSON verifies that 'gameshelf --json version' returns JSON with version fields
func TestVersionJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"--json", "version"}, &stdout, &stderr, nil)

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}

	var resp versionResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout.String())
	}
	if resp.Version != Version || resp.Commit != Commit || resp.Result != ResultInfoOnly {
		t.Errorf("unexpected response: %+v", resp)
	}
}

// --- Error Handling Tests ---

// TestUnknownCommandCoreCLI verifies unknown commands fail with an error on stderr
func TestUnknownCommandCoreCLI(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"launch"}, &stdout, &stderr, &Config{NoPrompt: true})

	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(stderr.String(), "Error:") || !strings.Contains(stderr.String(), "launch") {
		t.Errorf("expected error for unknown command, got: %s", stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != ResultError {
		t.Errorf("expected %s result code, got: %q", ResultError, stdout.String())
	}
}

// TestUnknownCommandJSON verifies errors are reported as JSON when --json is given
func TestUnknownCommandJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"launch", "--json"}, &stdout, &stderr, nil)

	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	var resp errorResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout.String())
	}
	if resp.Code != 1 || resp.Result != ResultError || resp.Error == "" {
		t.Errorf("unexpected error response: %+v", resp)
	}
	if stderr.Len() != 0 {
		t.Errorf("JSON errors should not be written to stderr, got: %s", stderr.String())
	}
}

// TestUploadRequiresFileCoreCLI verifies argument validation runs before setup
func TestUploadRequiresFileCoreCLI(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"game", "upload"}, &stdout, &stderr, nil)

	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(stderr.String(), "accepts 1 arg") {
		t.Errorf("expected argument error, got: %s", stderr.String())
	}
}

func TestContainsJSONFlag(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"game", "list", "--json"}, true},
		{[]string{"--json"}, true},
		{[]string{"game", "list", "-s", "json"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := containsJSONFlag(tt.args); got != tt.want {
			t.Errorf("containsJSONFlag(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

// --- Helper Tests ---

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "All", false},
		{"all", "All", false},
		{"ALL", "All", false},
		{"rpg", "RPG", false},
		{"Plan to Play", "", true},
		{"Horror", "", true},
	}
	for _, tt := range tests {
		got, err := parseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGameToJSONOmitsEmptyMedia(t *testing.T) {
	g := backend.Game{ID: "g1", Title: "Halo"}.WithDefaults()

	data, err := json.Marshal(gameToJSON(g))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "image_url") || strings.Contains(out, "game_url") {
		t.Errorf("empty media fields should be omitted: %s", out)
	}
	if !strings.Contains(out, `"category":"General"`) {
		t.Errorf("expected default category: %s", out)
	}
}

func TestEnvDoneAndWarn(t *testing.T) {
	var stdout, stderr bytes.Buffer
	e := &env{cfg: &Config{NoPrompt: true}, stdout: &stdout, stderr: &stderr}

	e.done(ResultActionCompleted)
	e.warn(utils.WrapWithSuggestion(errors.New("upload failed"), "try again"))

	if stdout.String() != ResultActionCompleted+"\n" {
		t.Errorf("unexpected result line: %q", stdout.String())
	}
	if stderr.String() != "Warning: upload failed\n" {
		t.Errorf("warning should only carry the first line: %q", stderr.String())
	}

	stdout.Reset()
	e.jsonOutput = true
	e.done(ResultActionCompleted)
	if stdout.Len() != 0 {
		t.Errorf("JSON mode should not print result codes: %q", stdout.String())
	}
}

func TestEnvInteractive(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		json bool
		want bool
	}{
		{"no prompt", Config{NoPrompt: true, Interactive: true}, false, false},
		{"json", Config{Interactive: true}, true, false},
		{"forced", Config{Interactive: true}, false, true},
		{"reader stdin", Config{Stdin: strings.NewReader("")}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			e := &env{cfg: &cfg, jsonOutput: tt.json}
			if got := e.interactive(); got != tt.want {
				t.Errorf("interactive() = %v, want %v", got, tt.want)
			}
		})
	}
}
