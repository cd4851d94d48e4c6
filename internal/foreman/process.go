package foreman

import (
	"errors"
	"os"
	"syscall"
)

// ProcessController abstracts the OS-level signalling used to put down
// stalled workers, so recovery logic can be tested without real processes.
type ProcessController interface {
	// Exists reports whether a process with the given pid is running.
	Exists(pid int) bool
	// Terminate asks the process to stop. Implementations return nil when
	// the process is already gone.
	Terminate(pid int) error
}

// OSProcessController signals real processes via SIGTERM.
type OSProcessController struct{}

func (OSProcessController) Exists(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 probes liveness.
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func (OSProcessController) Terminate(pid int) error {
	if pid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	err = proc.Signal(syscall.SIGTERM)
	if err == nil || errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
