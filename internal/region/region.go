// Package region hands out exclusive ownership of physical I/O windows.
//
// A claim is held both in-process (overlap check) and, when a lock directory
// is configured, across processes through an advisory lock file per window.
package region

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrBusy is returned when a window overlaps one already claimed.
var ErrBusy = errors.New("region: busy")

// Region is a physical address window.
type Region struct {
	Name string
	Base uint64
	Size int
}

func (r Region) end() uint64 { return r.Base + uint64(r.Size) }

func (r Region) overlaps(o Region) bool {
	return r.Base < o.end() && o.Base < r.end()
}

func (r Region) String() string {
	return fmt.Sprintf("%s[%#x-%#x]", r.Name, r.Base, r.end()-1)
}

// Registry tracks claimed regions.
type Registry struct {
	mu      sync.Mutex
	lockDir string
	held    map[*Claim]struct{}
}

// NewRegistry returns a registry. lockDir may be empty to skip
// cross-process locking.
func NewRegistry(lockDir string) *Registry {
	return &Registry{lockDir: lockDir, held: make(map[*Claim]struct{})}
}

// Claim is an exclusive hold on a Region. Close releases it.
type Claim struct {
	Region Region

	reg  *Registry
	lock io.Closer
}

// Claim takes exclusive ownership of rg.
func (r *Registry) Claim(rg Region) (*Claim, error) {
	if rg.Size <= 0 {
		return nil, fmt.Errorf("region: %s has no size", rg.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.held {
		if c.Region.overlaps(rg) {
			return nil, fmt.Errorf("%w: %s overlaps %s", ErrBusy, rg, c.Region)
		}
	}

	c := &Claim{Region: rg, reg: r}
	if r.lockDir != "" {
		if err := os.MkdirAll(r.lockDir, 0o700); err != nil {
			return nil, fmt.Errorf("region: lock dir: %w", err)
		}
		path := filepath.Join(r.lockDir, fmt.Sprintf("mem-%x.lock", rg.Base))
		l, err := lockFile(path)
		if err != nil {
			return nil, fmt.Errorf("region: %s: %w", rg, err)
		}
		c.lock = l
	}
	r.held[c] = struct{}{}
	return c, nil
}

// Held returns the number of regions currently claimed.
func (r *Registry) Held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}

// Close releases the claim. Calling it twice is harmless.
func (c *Claim) Close() error {
	c.reg.mu.Lock()
	_, ok := c.reg.held[c]
	delete(c.reg.held, c)
	c.reg.mu.Unlock()
	if !ok || c.lock == nil {
		return nil
	}
	return c.lock.Close()
}
