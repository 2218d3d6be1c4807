//go:build windows

package main

// disableCoreDumps is a no-op on Windows, which has no RLIMIT_CORE.
func disableCoreDumps() error {
	return nil
}
