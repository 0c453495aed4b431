package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
)

// resetLogger gives the test a fresh singleton writing into a buffer
func resetLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	once = sync.Once{}
	loggerInstance = nil

	var buf bytes.Buffer
	GetLogger().SetOutput(&buf)
	t.Cleanup(func() {
		once = sync.Once{}
		loggerInstance = nil
	})
	return &buf
}

func TestGetLogger(t *testing.T) {
	if GetLogger() != GetLogger() {
		t.Error("GetLogger() should return same singleton instance")
	}
}

func TestLoggerDefaultVerboseMode(t *testing.T) {
	resetLogger(t)
	if GetLogger().IsVerbose() {
		t.Error("Logger should have verbose=false by default")
	}
}

func TestSetVerboseMode(t *testing.T) {
	resetLogger(t)

	SetVerboseMode(true)
	if !GetLogger().IsVerbose() {
		t.Error("SetVerboseMode(true) should enable verbose mode")
	}
	SetVerboseMode(false)
	if GetLogger().IsVerbose() {
		t.Error("SetVerboseMode(false) should disable verbose mode")
	}
}

func TestDebugOnlyShownWhenVerbose(t *testing.T) {
	buf := resetLogger(t)
	logger := GetLogger()

	logger.Debug("hidden message")
	if buf.Len() > 0 {
		t.Errorf("Debug should not output when verbose=false, got: %s", buf.String())
	}

	logger.SetVerbose(true)
	logger.Debug("subscribed to %s", "u1")

	out := buf.String()
	if !strings.Contains(out, "[DEBUG] subscribed to u1") {
		t.Errorf("Debug output = %q", out)
	}
	if !regexp.MustCompile(`^\d{2}:\d{2}:\d{2} \[DEBUG\]`).MatchString(out) {
		t.Errorf("verbose output should start with HH:MM:SS timestamp, got %q", out)
	}
}

func TestLevelsAlwaysShown(t *testing.T) {
	buf := resetLogger(t)

	Infof("info %d", 1)
	Warnf("warn %d", 2)
	Errorf("error %d", 3)

	out := buf.String()
	for _, want := range []string{"[INFO] info 1\n", "[WARN] warn 2\n", "[ERROR] error 3\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestSetOutputReturnsPrevious(t *testing.T) {
	first := resetLogger(t)
	var second bytes.Buffer

	prev := GetLogger().SetOutput(&second)
	if prev != first {
		t.Error("SetOutput should return the previous writer")
	}
	Infof("to second")
	if first.Len() != 0 || !strings.Contains(second.String(), "to second") {
		t.Errorf("first=%q second=%q", first.String(), second.String())
	}
}

func TestLoggerThreadSafety(t *testing.T) {
	resetLogger(t)
	logger := GetLogger()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.SetVerbose(i%2 == 0)
			logger.Debug("debug %d", i)
			_ = logger.IsVerbose()
		}(i)
	}
	wg.Wait()
}

func TestBackgroundLoggerDisabled(t *testing.T) {
	bl, err := NewBackgroundLogger("serve", false)
	if err != nil {
		t.Fatalf("NewBackgroundLogger error = %v", err)
	}
	if bl.IsEnabled() || bl.GetLogPath() != "" {
		t.Errorf("disabled logger should have no file, got %q", bl.GetLogPath())
	}
	bl.Printf("discarded %s", "line")
	bl.Close()
}

func TestBackgroundLoggerPathFormat(t *testing.T) {
	bl, err := NewBackgroundLogger("watch", true)
	if err != nil {
		t.Fatalf("NewBackgroundLogger error = %v", err)
	}
	defer func() { _ = os.Remove(bl.GetLogPath()) }()
	defer bl.Close()

	logPath := bl.GetLogPath()
	if !strings.HasPrefix(filepath.Base(logPath), "gameshelf-watch-") {
		t.Errorf("log path should name the command, got: %s", logPath)
	}
	if filepath.Dir(logPath) != filepath.Clean(os.TempDir()) {
		t.Errorf("log path should be in temp directory, got: %s", logPath)
	}
}

func TestBackgroundLoggerWritesMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serve.log")

	bl, err := NewBackgroundLoggerWithPath(path)
	if err != nil {
		t.Fatalf("NewBackgroundLoggerWithPath error = %v", err)
	}
	bl.Printf("listening on %s", ":8090")
	bl.Println("stored", "game_images/1.jpg")
	bl.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	for _, want := range []string{"listening on :8090", "stored game_images/1.jpg"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("log should contain %q, got: %s", want, content)
		}
	}

	// writes after close are discarded without panicking
	bl.Printf("after close")
	if bl.IsEnabled() {
		t.Error("logger should be disabled after Close")
	}
}

func TestBackgroundLoggerGracefulDegradation(t *testing.T) {
	bl, err := NewBackgroundLoggerWithPath("/nonexistent/directory/log.txt")
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}

	bl.Printf("This should not panic: %s", "test")
	bl.Println("This should not panic")
	bl.Close()

	if bl.IsEnabled() {
		t.Error("Logger should not be enabled when file creation fails")
	}
}
