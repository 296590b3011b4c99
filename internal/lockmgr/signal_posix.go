//go:build !windows

package lockmgr

import "syscall"

// syscallSig0 is the zero-signal used to probe whether a pid is alive
// without affecting it.
var syscallSig0 = syscall.Signal(0)
