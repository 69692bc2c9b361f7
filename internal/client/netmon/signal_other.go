//go:build !unix

package netmon

import "os"

var focusSignals []os.Signal
