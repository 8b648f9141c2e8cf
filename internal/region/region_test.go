package region

import (
	"errors"
	"runtime"
	"testing"
)

func TestClaimOverlap(t *testing.T) {
	r := NewRegistry("")

	ctrl, err := r.Claim(Region{Name: "ctrl", Base: 0x20000000, Size: 2})
	if err != nil {
		t.Fatalf("Claim ctrl: %v", err)
	}
	if _, err := r.Claim(Region{Name: "dup", Base: 0x20000001, Size: 4}); !errors.Is(err, ErrBusy) {
		t.Errorf("overlapping claim err = %v, want ErrBusy", err)
	}
	data, err := r.Claim(Region{Name: "data", Base: 0x20000002, Size: 2})
	if err != nil {
		t.Fatalf("adjacent claim: %v", err)
	}
	if got := r.Held(); got != 2 {
		t.Errorf("Held() = %d, want 2", got)
	}

	if err := ctrl.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := ctrl.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := data.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if got := r.Held(); got != 0 {
		t.Errorf("Held() after close = %d, want 0", got)
	}
}

func TestClaimZeroSize(t *testing.T) {
	if _, err := NewRegistry("").Claim(Region{Name: "x", Base: 1}); err == nil {
		t.Error("zero sized claim succeeded")
	}
}

func TestClaimLockFileAcrossRegistries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no flock")
	}
	dir := t.TempDir()
	a := NewRegistry(dir)
	b := NewRegistry(dir)

	rg := Region{Name: "ctrl", Base: 0x20000000, Size: 2}
	ca, err := a.Claim(rg)
	if err != nil {
		t.Fatalf("Claim a: %v", err)
	}
	if _, err := b.Claim(rg); !errors.Is(err, ErrBusy) {
		t.Errorf("second registry claim err = %v, want ErrBusy", err)
	}
	if err := ca.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	cb, err := b.Claim(rg)
	if err != nil {
		t.Fatalf("Claim after release: %v", err)
	}
	cb.Close()
}
