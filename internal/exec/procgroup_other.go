//go:build !unix

package exec

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// signalGroup falls back to killing the process itself where process groups are unavailable.
func signalGroup(p *os.Process, force bool) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

// ProcessAlive reports whether a process with the given pid exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
