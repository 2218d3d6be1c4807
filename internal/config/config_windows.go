//go:build windows

package config

import "os"

// checkFileOwnership on Windows is a no-op.
// Windows uses ACLs for file ownership; the permission bits are the only check.
func checkFileOwnership(_ os.FileInfo) error {
	return nil
}
