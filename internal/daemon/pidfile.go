// Package daemon tracks a background board server through a PID file.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrRunning is returned by Acquire when a live process owns the file.
	ErrRunning = errors.New("already running")
	// ErrNotRunning is returned by Stop when no live process owns the file.
	ErrNotRunning = errors.New("not running")
)

// PIDFile records which process serves the board.
type PIDFile struct {
	Path string

	// PollInterval is how often Stop checks whether the process has exited.
	PollInterval time.Duration
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path, PollInterval: 100 * time.Millisecond}
}

// Write writes the current process's PID to the file.
func (p *PIDFile) Write() error {
	return p.WritePID(os.Getpid())
}

// WritePID writes the given PID to the file, creating its directory.
func (p *PIDFile) WritePID(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	return os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// Read reads the PID from the file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}

// IsRunning reads the file and reports the PID it names and whether that
// process is alive.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	return pid, alive(pid)
}

// Signal sends sig to the process named in the file.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	return signal(pid, sig)
}

// Acquire claims the file for pid. A stale file left by a dead process is
// replaced; a file owned by another live process yields ErrRunning.
func (p *PIDFile) Acquire(pid int) error {
	if owner, running := p.IsRunning(); running && owner != pid {
		return fmt.Errorf("server %w (pid %d)", ErrRunning, owner)
	}
	return p.WritePID(pid)
}

// Release removes the file if pid still owns it.
func (p *PIDFile) Release(pid int) error {
	owner, err := p.Read()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil || owner != pid {
		return err
	}
	return p.Remove()
}

// Stop sends term to the owning process and waits up to timeout for that
// pid to exit, then sends kill. The file is removed once the process is gone.
// forced reports whether kill was needed.
func (p *PIDFile) Stop(timeout time.Duration, term, kill syscall.Signal) (pid int, forced bool, err error) {
	pid, running := p.IsRunning()
	if !running {
		_ = p.Remove()
		return pid, false, fmt.Errorf("server %w", ErrNotRunning)
	}

	if err := signal(pid, term); err != nil {
		return pid, false, fmt.Errorf("signal %d: %w", pid, err)
	}

	poll := p.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !alive(pid) {
			_ = p.Remove()
			return pid, false, nil
		}
		time.Sleep(poll)
	}

	if err := signal(pid, kill); err != nil {
		return pid, true, fmt.Errorf("kill %d: %w", pid, err)
	}
	_ = p.Remove()
	return pid, true, nil
}
