//go:build windows

package lifecycle

import (
	"os"
	"syscall"
)

// Ctrl-C and Ctrl-Break both arrive as os.Interrupt.
func terminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
