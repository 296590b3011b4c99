//go:build windows

package lockmgr

import "os"

// syscallSig0 has no POSIX signal-0 equivalent on Windows; processAlive
// falls back to os.Interrupt, which os.Process.Signal rejects outright on
// most processes but still distinguishes an exited process.
var syscallSig0 = os.Interrupt
