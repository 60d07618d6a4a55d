//go:build unix

package media

import (
	"fmt"
	"os"
	"syscall"
)

var errProcessDone = os.ErrProcessDone

func suspend(proc *os.Process) error {
	if err := proc.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("pause playback: %w", err)
	}
	return nil
}

func resume(proc *os.Process) error {
	if err := proc.Signal(syscall.SIGCONT); err != nil {
		return fmt.Errorf("resume playback: %w", err)
	}
	return nil
}
