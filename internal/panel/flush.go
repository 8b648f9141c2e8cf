package panel

import (
	appLog "tftfb/internal/log"
)

// Stats counts flush activity since attach.
type Stats struct {
	// Cycles is the number of Flush and UpdateAll calls that copied pages.
	Cycles uint64 `json:"cycles"`
	// Pages is the number of pages copied to the controller.
	Pages uint64 `json:"pages"`
	// Reprograms is the number of write window setups.
	Reprograms uint64 `json:"reprograms"`
	// Ignored is the number of out-of-range page indices dropped.
	Ignored uint64 `json:"ignored"`
}

// copyPage streams page i to GRAM. The write window is only reprogrammed when
// the page does not start where the previous burst ended, since the
// controller's address counter already points there. d.mu is held.
func (d *Device) copyPage(i int) {
	p := d.pages[i]
	w := d.desc.Window

	if p.Offset != d.cursor {
		if appLog.Enabled(appLog.LevelDebug) {
			appLog.Debug("window", "page", i, "x", p.X, "y", p.Y, "offset", p.Offset, "len", p.Len)
		}
		d.bus.WriteRegister(w.EntryMode, w.EntryValue)
		d.bus.WriteRegister(w.YAddr, p.Y)
		d.bus.WriteRegister(w.XAddr, p.X)
		d.bus.SendCommand(w.GRAM)
		d.stats.Reprograms++
	}

	n := p.Len * d.desc.BitsPerPixel / 8
	d.bus.Burst(d.fb[p.Offset : p.Offset+n])
	d.cursor = p.Offset + n
	d.stats.Pages++
}

// Flush copies the given pages in the order given. Indices outside the page
// table are skipped.
func (d *Device) Flush(pages []int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pages == nil {
		return
	}

	copied := false
	for _, i := range pages {
		if i < 0 || i >= len(d.pages) {
			d.stats.Ignored++
			appLog.Debug("dirty page out of range", "fb", d.name, "page", i, "pages", len(d.pages))
			continue
		}
		d.copyPage(i)
		copied = true
	}
	if copied {
		d.stats.Cycles++
	}
}

// UpdateAll copies every page once, in ascending order.
func (d *Device) UpdateAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updateAll()
}

func (d *Device) updateAll() {
	if len(d.pages) == 0 {
		return
	}
	for i := range d.pages {
		d.copyPage(i)
	}
	d.stats.Cycles++
}

// noCursor never equals a page offset, so the copy after a reset always
// programs the write window.
const noCursor = -1

// ResetCursor forgets where the last burst ended so the next copy
// reprograms the write window.
func (d *Device) ResetCursor() {
	d.mu.Lock()
	d.cursor = noCursor
	d.mu.Unlock()
}

// Refresh resets the cursor and rewrites the whole panel.
func (d *Device) Refresh() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = noCursor
	d.updateAll()
}

func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
