package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Rotator is the log sink: one file per local calendar day, named
// <dir>/<prefix>-YYYY-MM-DD.log. When it moves to a new day it deletes files
// dated more than keepDays-1 days earlier, so a client that was idle for a
// week loses the stale files on its first write rather than keeping them.
// Files in dir whose names do not parse as a date are left alone.
type Rotator struct {
	dir      string
	prefix   string
	keepDays int

	mu    sync.Mutex
	clock func() time.Time
	day   time.Time
	file  *os.File
}

func NewRotator(dir, prefix string, keepDays int) *Rotator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if keepDays <= 0 {
		keepDays = DefaultKeepDays
	}
	return &Rotator{dir: dir, prefix: prefix, keepDays: keepDays, clock: time.Now}
}

// SetClock replaces the time source. Used in tests only.
func (r *Rotator) SetClock(fn func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = fn
}

func (r *Rotator) FileName(day time.Time) string {
	return filepath.Join(r.dir, r.prefix+"-"+day.Format(time.DateOnly)+".log")
}

func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := startOfDay(r.clock())
	if r.file == nil || !today.Equal(r.day) {
		if err := r.switchTo(today); err != nil {
			return 0, err
		}
	}
	return r.file.Write(p)
}

func (r *Rotator) switchTo(day time.Time) error {
	f, err := os.OpenFile(r.FileName(day), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if r.file != nil {
		r.file.Close()
	}
	r.file, r.day = f, day
	r.removeExpired(day)
	return nil
}

func (r *Rotator) removeExpired(today time.Time) {
	oldest := today.AddDate(0, 0, -(r.keepDays - 1))
	names, err := filepath.Glob(filepath.Join(r.dir, r.prefix+"-*.log"))
	if err != nil {
		return
	}
	for _, name := range names {
		if d, ok := r.dateOf(name, today.Location()); ok && d.Before(oldest) {
			os.Remove(name)
		}
	}
}

func (r *Rotator) dateOf(name string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(name), r.prefix+"-"), ".log")
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	return d, err == nil
}

// Close releases the current file. A later Write reopens it.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
