//go:build unix

package region

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

type flock struct {
	f *os.File
}

// lockFile takes a non-blocking exclusive flock on path, creating it.
func lockFile(path string) (*flock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: held by another process (%s)", ErrBusy, path)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &flock{f: f}, nil
}

func (l *flock) Close() error {
	uerr := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	cerr := l.f.Close()
	if uerr != nil {
		return uerr
	}
	return cerr
}
