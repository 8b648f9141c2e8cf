//go:build !unix

package region

import "errors"

type flock struct{}

func lockFile(string) (*flock, error) {
	return nil, errors.New("lock files are not supported on this platform")
}

func (*flock) Close() error { return nil }
