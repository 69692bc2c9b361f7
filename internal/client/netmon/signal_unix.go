//go:build unix

package netmon

import (
	"os"
	"syscall"
)

var focusSignals = []os.Signal{syscall.SIGCONT, syscall.SIGUSR1}
