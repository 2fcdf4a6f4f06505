package serialization

import "sync/atomic"

// Stats is a snapshot of the reader's countable signals. The engine does
// no reporting of its own; external observers sample these.
type Stats struct {
	BytesRead        int64 // bytes read from the source (header, index, payloads)
	BytesTransferred int64 // raw payload bytes placed on the target device
	TensorsLoaded    int64 // materializations, including staging-buffer reloads
	ActiveBuffers    int64 // device buffers the reader holds (cache + staging ring); zero after Close
}

type counters struct {
	bytesRead        atomic.Int64
	bytesTransferred atomic.Int64
	tensorsLoaded    atomic.Int64
	activeBuffers    atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		BytesRead:        c.bytesRead.Load(),
		BytesTransferred: c.bytesTransferred.Load(),
		TensorsLoaded:    c.tensorsLoaded.Load(),
		ActiveBuffers:    c.activeBuffers.Load(),
	}
}
