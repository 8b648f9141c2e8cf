package platform

import (
	"io"
	"testing"
)

type nopCloser struct{ closed *int }

func (n nopCloser) Close() error { *n.closed++; return nil }

func TestConfigureBusTimingOnce(t *testing.T) {
	var regs staticRegs
	maps, closed := 0, 0
	orig := mapRegs
	mapRegs = func(base uint64) (*staticRegs, io.Closer, error) {
		maps++
		if base != 0x17008200 {
			t.Errorf("mapped base %#x", base)
		}
		return &regs, nopCloser{&closed}, nil
	}
	defer func() { mapRegs = orig }()

	s := Static{Timing: DefaultTiming()}
	if err := s.ConfigureBusTiming(); err != nil {
		t.Fatalf("ConfigureBusTiming: %v", err)
	}
	other := Static{Timing: Timing{Base: 0xdead0000, Config: 0xff}}
	if err := other.ConfigureBusTiming(); err != nil {
		t.Fatalf("second ConfigureBusTiming: %v", err)
	}

	if maps != 1 || closed != 1 {
		t.Errorf("maps=%d closed=%d, want 1/1", maps, closed)
	}
	want := staticRegs{Config: 0x81, WaitWen: 5, WaitOen: 5, WaitRd: 31, WaitPg: 5, WaitWr: 10, Turn: 8}
	if regs != want {
		t.Errorf("regs = %+v, want %+v", regs, want)
	}
}

func TestNone(t *testing.T) {
	if err := (None{}).ConfigureBusTiming(); err != nil {
		t.Errorf("None: %v", err)
	}
}
