//go:build !windows

package main

import "golang.org/x/sys/unix"

// disableCoreDumps sets RLIMIT_CORE to zero so a crash cannot write
// decrypted secrets to disk.
func disableCoreDumps() error {
	return unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0})
}
