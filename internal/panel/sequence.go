package panel

import (
	"fmt"
	"strings"
	"time"

	"tftfb/internal/bus"
)

// Stage is the power state of the controller as driven by the init table.
type Stage int

const (
	StageReset Stage = iota
	StageOscillatorStarted
	StagePowerSequenced
	StageGramConfigured
	StageDisplayOn
	StageStandby
)

func (s Stage) String() string {
	switch s {
	case StageReset:
		return "reset"
	case StageOscillatorStarted:
		return "oscillator-started"
	case StagePowerSequenced:
		return "power-sequenced"
	case StageGramConfigured:
		return "gram-configured"
	case StageDisplayOn:
		return "display-on"
	case StageStandby:
		return "standby"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Step writes Val to Reg, then waits Delay.
type Step struct {
	Reg   uint8
	Val   uint16
	Delay time.Duration
}

// Phase is the contiguous run of writes that moves the controller to To.
type Phase struct {
	To    Stage
	Steps []Step
}

// InitTable is the full power-on sequence of a panel.
type InitTable []Phase

// Validate checks that the table walks every stage from reset to display-on
// exactly once, in order.
func (t InitTable) Validate() error {
	want := StageOscillatorStarted
	for i, p := range t {
		if p.To != want {
			return fmt.Errorf("panel: init phase %d leads to %v, want %v", i, p.To, want)
		}
		if len(p.Steps) == 0 {
			return fmt.Errorf("panel: init phase %v is empty", p.To)
		}
		want++
	}
	if want != StageDisplayOn+1 {
		return fmt.Errorf("panel: init table stops before %v", want)
	}
	return nil
}

// Len is the number of register writes in the table.
func (t InitTable) Len() int {
	n := 0
	for _, p := range t {
		n += len(p.Steps)
	}
	return n
}

// Supply is the panel supply voltage. Some controllers need a different
// power and gamma tuning per supply.
type Supply int

const (
	Supply2V8 Supply = iota
	Supply3V3
)

func (s Supply) String() string {
	if s == Supply3V3 {
		return "3v3"
	}
	return "2v8"
}

// ParseSupply accepts "3v3"/"3.3v" and "2v8"/"2.8v". Empty means 2v8.
func ParseSupply(s string) (Supply, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "2v8", "2.8v", "2.8":
		return Supply2V8, nil
	case "3v3", "3.3v", "3.3":
		return Supply3V3, nil
	}
	return 0, fmt.Errorf("panel: unknown supply %q", s)
}

// replay writes steps with the fast accessor and honours each delay.
func replay(b *bus.Bus, steps []Step) {
	for _, s := range steps {
		b.WriteRegister(s.Reg, s.Val)
		b.Delay(s.Delay)
	}
}

// runInit replays a validated table, reporting each stage reached, and leaves
// the controller selected on its GRAM register.
func runInit(b *bus.Bus, t InitTable, gram uint8, reached func(Stage)) {
	for _, p := range t {
		replay(b, p.Steps)
		reached(p.To)
	}
	b.SendCommand(gram)
}
