package session

import (
	"sync"
	"time"

	"github.com/danmuck/colonyctl/internal/protocol/frame"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

// PendingFrame is one encoded buffer waiting for the transport.
type PendingFrame struct {
	Seq      uint64
	EventID  schema.EventID
	Raw      []byte
	QueuedAt time.Time
}

// Outbox buffers outbound frames for a transport running on another
// goroutine. It satisfies mux.Outbound.
type Outbox struct {
	mu    sync.Mutex
	seq   uint64
	items []PendingFrame
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Send(raw []byte) error {
	h, err := frame.DecodeHeader(raw)
	if err != nil {
		return err
	}
	buf := make([]byte, len(raw))
	copy(buf, raw)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	o.items = append(o.items, PendingFrame{
		Seq:      o.seq,
		EventID:  schema.EventID(h.EventID),
		Raw:      buf,
		QueuedAt: time.Now(),
	})
	return nil
}

// Drain removes and returns every pending frame in send order.
func (o *Outbox) Drain() []PendingFrame {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.items
	o.items = nil
	return out
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
