package applog_test

import (
	"bytes"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zsprackett/flowcontrol/internal/applog"
)

func day(d int) func() time.Time {
	return func() time.Time { return time.Date(2026, 1, d, 12, 0, 0, 0, time.UTC) }
}

func TestRotatorCreatesFileOnFirstWrite(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewRotator(dir, "", 0)
	defer r.Close()
	r.SetClock(day(3))

	if _, err := r.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(dir, "flowcontrol-2026-01-03.log")
	if r.FileName(day(3)()) != name {
		t.Errorf("FileName: got %q", r.FileName(day(3)()))
	}
	if _, err := os.Stat(name); err != nil {
		t.Errorf("expected log file %q to exist: %v", name, err)
	}
}

func TestRotatorRotatesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewRotator(dir, "queue", 3)

	for d := 1; d <= 5; d++ {
		r.SetClock(day(d))
		if _, err := r.Write([]byte("entry\n")); err != nil {
			t.Fatal(err)
		}
	}
	r.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "queue-*.log"))
	if len(matches) != 3 {
		t.Fatalf("expected 3 log files after pruning, got %d: %v", len(matches), matches)
	}
	if filepath.Base(matches[0]) != "queue-2026-01-03.log" {
		t.Errorf("oldest kept file: %s", matches[0])
	}
}

func TestRotatorExpiresByDateAfterIdleDays(t *testing.T) {
	dir := t.TempDir()
	foreign := filepath.Join(dir, "queue-notes.log")
	os.WriteFile(foreign, []byte("keep me\n"), 0o644)

	r := applog.NewRotator(dir, "queue", 3)
	defer r.Close()
	r.SetClock(day(1))
	r.Write([]byte("monday\n"))
	r.SetClock(day(2))
	r.Write([]byte("tuesday\n"))

	// Idle for a week: both earlier files are now past the window even
	// though only two exist.
	r.SetClock(day(10))
	r.Write([]byte("back\n"))

	matches, _ := filepath.Glob(filepath.Join(dir, "queue-2026-*.log"))
	if len(matches) != 1 || filepath.Base(matches[0]) != "queue-2026-01-10.log" {
		t.Errorf("kept: %v", matches)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("undated file removed: %v", err)
	}
}

func TestRotatorReopensAfterClose(t *testing.T) {
	dir := t.TempDir()
	r := applog.NewRotator(dir, "", 0)
	r.SetClock(day(1))
	r.Write([]byte("one\n"))
	r.Close()
	if _, err := r.Write([]byte("two\n")); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	r.Close()

	data, _ := os.ReadFile(filepath.Join(dir, "flowcontrol-2026-01-01.log"))
	if string(data) != "one\ntwo\n" {
		t.Errorf("contents: %q", data)
	}
}

func TestSetupWritesToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		log.SetOutput(os.Stderr)
	})

	logger, closer, err := applog.Setup(applog.Options{Dir: dir, Level: "debug"})
	if err != nil {
		t.Fatal(err)
	}
	applog.Component(logger, "push").Debug("connected", "client", "patient_P042")
	log.Print("stdlib-log-test-marker")
	closer.Close()

	data, err := os.ReadFile(filepath.Join(dir, "flowcontrol-"+time.Now().Format(time.DateOnly)+".log"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"component=push", "client=patient_P042", "stdlib-log-test-marker"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("log file missing %q: %q", want, data)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
	}
	for _, tc := range cases {
		if got := applog.ParseLevel(tc.input); got != tc.level {
			t.Errorf("ParseLevel(%q): got %v want %v", tc.input, got, tc.level)
		}
	}
	if !strings.Contains(applog.ParseLevel("bogus").String(), "INFO") {
		t.Error("unknown levels should fall back to info")
	}
}
