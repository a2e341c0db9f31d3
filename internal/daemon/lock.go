package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// acquireLock opens (creating if absent) and exclusively, non-blockingly
// flocks path, so a second instance of the same daemon started against
// the same logs directory fails fast instead of racing the first one for
// the same upload_queue rows.
func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("daemon: open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("daemon: another instance already holds %s", path)
	}
	return f, nil
}

func releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return f.Close()
}
