//go:build !unix

package sink

import "os"

// Advisory locking is only implemented on Unix.
func lockFile(f *os.File) error { return nil }

func unlockFile(f *os.File) {}
