//go:build !windows

package procmgr

import (
	"os/exec"
	"syscall"
)

// setDetachedProcessAttrs puts the twin in its own process group so a
// Ctrl-C in the shell that started it does not stop it.
func setDetachedProcessAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
