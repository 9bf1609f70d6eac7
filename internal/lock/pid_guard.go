// Package lock keeps two hrdesk servers from writing the same store.
//
// A server snapshots the whole store on every mutation, so a second server on
// the same file would silently overwrite the first one's changes. The guard
// is a PID file next to the store; a file left behind by a dead process is
// reclaimed.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDSuffix is appended to the guarded path to name the PID file.
const PIDSuffix = ".pid"

// PIDGuard owns a PID file for one guarded path.
type PIDGuard struct {
	path string
}

// NewPIDGuard creates a guard for target, typically the store file.
func NewPIDGuard(target string) *PIDGuard {
	return &PIDGuard{path: target + PIDSuffix}
}

// Path returns the PID file path.
func (g *PIDGuard) Path() string {
	return g.path
}

// Check reports whether another live process holds the guard. A PID file
// naming a dead process, or holding garbage, is removed.
func (g *PIDGuard) Check() error {
	data, err := os.ReadFile(g.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		_ = os.Remove(g.path)
		return nil
	}
	if pid != os.Getpid() && processExists(pid) {
		return &AlreadyRunningError{PID: pid, Path: g.path}
	}
	_ = os.Remove(g.path)
	return nil
}

// Acquire checks the guard and writes the current PID. The file is created
// exclusively so two processes racing past Check cannot both win.
func (g *PIDGuard) Acquire() error {
	if err := g.Check(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(g.path), 0755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	f, err := os.OpenFile(g.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &AlreadyRunningError{Path: g.path}
		}
		return fmt.Errorf("write pid file: %w", err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(g.path)
		return fmt.Errorf("write pid file: %w", werr)
	}
	return nil
}

// Release removes the PID file if this process owns it. Safe to call more
// than once.
func (g *PIDGuard) Release() {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return
	}
	if strings.TrimSpace(string(data)) == strconv.Itoa(os.Getpid()) {
		_ = os.Remove(g.path)
	}
}

// AlreadyRunningError reports a live process holding the guard. PID is zero
// when the other process won a race and had not written its PID yet.
type AlreadyRunningError struct {
	PID  int
	Path string
}

func (e *AlreadyRunningError) Error() string {
	if e.PID == 0 {
		return fmt.Sprintf("store already in use (%s)", e.Path)
	}
	return fmt.Sprintf("store already in use by pid %d (%s)", e.PID, e.Path)
}

// processExists sends signal 0, which checks for the process without
// touching it.
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
