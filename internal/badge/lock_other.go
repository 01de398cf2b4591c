//go:build !unix

package badge

import "os"

// Single writer per data dir on these platforms; nothing to lock.
func lockFile(*os.File) error       { return nil }
func lockFileShared(*os.File) error { return nil }
func unlockFile(*os.File) error     { return nil }
