package serialization

import (
	"fmt"

	"github.com/mifeet/tensorizer/internal/device"
)

// stagingPool is a fixed ring of device buffers recycled across
// low-memory loads. Slots are allocated lazily, all with the same
// capacity (the largest raw payload in the active key set), so any
// active tensor fits any slot. The pool never grows past its ring size.
type stagingPool struct {
	dev      device.Device
	slotSize int
	slots    []device.Buffer
	next     int
	counters *counters
}

func newStagingPool(dev device.Device, ringSize, slotSize int, c *counters) *stagingPool {
	return &stagingPool{
		dev:      dev,
		slotSize: slotSize,
		slots:    make([]device.Buffer, ringSize),
		counters: c,
	}
}

// acquire returns the next ring slot, allocating it on first use. The
// returned buffer's previous contents are owned by whoever holds a view
// into it; the caller is about to overwrite them.
func (p *stagingPool) acquire() (device.Buffer, error) {
	i := p.next
	p.next = (p.next + 1) % len(p.slots)
	if p.slots[i] == nil {
		buf, err := p.dev.Allocate(p.slotSize)
		if err != nil {
			return nil, fmt.Errorf("allocate staging slot of %d bytes: %w", p.slotSize, err)
		}
		p.slots[i] = buf
		p.counters.activeBuffers.Add(1)
	}
	return p.slots[i], nil
}

func (p *stagingPool) release() {
	for i, buf := range p.slots {
		if buf != nil {
			buf.Release()
			p.slots[i] = nil
			p.counters.activeBuffers.Add(-1)
		}
	}
}
