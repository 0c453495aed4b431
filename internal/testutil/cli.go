// Package testutil provides shared test utilities for CLI testing across packages.
// This enables co-located CLI tests while maintaining consistent test infrastructure.
package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"gameshelf/cmd/gameshelf/cmd"
	"gameshelf/internal/credentials"
)

// defaultTestConfig keeps tests isolated from the user's environment: no
// file watcher and no background log files.
const defaultTestConfig = `# test config
store:
  watch_external: false
cache:
  persist: true
logging:
  background_enabled: false
output_format: text
`

// CLITest provides a test helper for running CLI commands in isolation.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	configPath string
	keyring    *credentials.MockKeyring
}

// NewCLITest creates a new CLI test helper with its own database, snapshot
// cache, media directory and in-memory keyring. Nobody is signed in.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte(defaultTestConfig), 0644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	keyring := credentials.NewMockKeyring()
	cfg := &cmd.Config{
		NoPrompt:   true,
		ConfigPath: configPath,
		DBPath:     filepath.Join(tmpDir, "test.db"),
		CacheDir:   filepath.Join(tmpDir, "cache"),
		MediaDir:   filepath.Join(tmpDir, "media"),
		Keyring:    keyring,
	}

	return &CLITest{
		t:          t,
		cfg:        cfg,
		tmpDir:     tmpDir,
		configPath: configPath,
		keyring:    keyring,
	}
}

// NewSignedInCLITest creates a CLI test helper and signs name in.
func NewSignedInCLITest(t *testing.T, name string) *CLITest {
	t.Helper()

	c := NewCLITest(t)
	c.MustExecute("signin", "--name", name)
	return c
}

// Config returns the test configuration.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// TmpDir returns the temporary directory for the test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// ConfigPath returns the path to the config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// DBPath returns the path to the test database.
func (c *CLITest) DBPath() string {
	return c.cfg.DBPath
}

// MediaDir returns where the local storage driver puts uploads.
func (c *CLITest) MediaDir() string {
	return c.cfg.MediaDir
}

// Keyring returns the in-memory keyring sessions are stored in.
func (c *CLITest) Keyring() *credentials.MockKeyring {
	return c.keyring
}

// SetConfigValue appends a top-level YAML section or key to the test config.
func (c *CLITest) SetConfigValue(key, value string) {
	c.t.Helper()

	data, err := os.ReadFile(c.configPath)
	if err != nil {
		c.t.Fatalf("failed to read config file: %v", err)
	}
	newConfig := string(data) + key + ": " + value + "\n"
	if err := os.WriteFile(c.configPath, []byte(newConfig), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// SetFullConfig replaces the entire config file with the given YAML content.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()

	if err := os.WriteFile(c.configPath, []byte(yamlContent), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// Execute runs a CLI command with the given arguments and returns stdout, stderr, and exit code.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, c.cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// ExecuteWithInput runs a command with prompts enabled, answering them from input.
func (c *CLITest) ExecuteWithInput(input string, args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	saved := *c.cfg
	defer func() { *c.cfg = saved }()

	c.cfg.NoPrompt = false
	c.cfg.Interactive = true
	c.cfg.Stdin = strings.NewReader(input)
	return c.Execute(args...)
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// ExecuteJSON runs a command with --json and decodes the single-line response into v.
func (c *CLITest) ExecuteJSON(v any, args ...string) {
	c.t.Helper()

	stdout := c.MustExecute(append(args, "--json")...)
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), v); err != nil {
		c.t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
}

// CountRows returns the number of rows in table, across all owners.
func (c *CLITest) CountRows(table string) int {
	c.t.Helper()

	db, err := openTestDB(c.cfg.DBPath)
	if err != nil {
		c.t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		c.t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode fails the test if exit code doesn't match expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}

// AssertResultCode verifies that the output ends with the expected result code.
func AssertResultCode(t *testing.T, output, expectedCode string) {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		t.Errorf("expected result code %q but output is empty", expectedCode)
		return
	}
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if lastLine != expectedCode {
		t.Errorf("expected result code %q, got %q\nFull output:\n%s", expectedCode, lastLine, output)
	}
}

// Result code constants for convenience.
const (
	ResultActionCompleted = cmd.ResultActionCompleted
	ResultInfoOnly        = cmd.ResultInfoOnly
	ResultError           = cmd.ResultError
)

// openTestDB opens the SQLite database for testing purposes.
func openTestDB(dbPath string) (*sql.DB, error) {
	return sql.Open("sqlite", dbPath)
}
