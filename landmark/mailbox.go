package landmark

import (
	"context"
	"sync"
	"time"
)

type (
	// Mailbox is a frame source fed by an external camera. Publish never
	// blocks: a new frame replaces the previous one, so the loop always
	// works on the newest frame and slow frames are dropped, never queued.
	// A mailbox can be opened again after Close, once per session.
	Mailbox struct {
		mu        sync.Mutex
		frame     Frame
		unread    bool
		open      bool
		seq       uint64
		published uint64
		drops     uint64
	}

	// MailboxStats counts frames published and frames replaced before
	// anyone read them.
	MailboxStats struct {
		Published uint64
		Dropped   uint64
	}

	// Synthetic is a frame source producing a blank frame on every call,
	// for scripted detectors and headless runs.
	Synthetic struct {
		mu     sync.Mutex
		width  int
		height int
		seq    uint64
		open   bool
	}
)

func NewMailbox() *Mailbox {
	return &Mailbox{}
}

func (m *Mailbox) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

// Publish stores the frame as the newest one and assigns it a sequence
// number. Frames published while the mailbox is not open are counted as
// dropped.
func (m *Mailbox) Publish(f Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published++
	if !m.open {
		m.drops++
		return
	}
	if m.unread {
		m.drops++
	}
	m.seq++
	f.Seq = m.seq
	if f.Captured.IsZero() {
		f.Captured = time.Now()
	}
	m.frame = f
	m.unread = true
}

func (m *Mailbox) Latest() (Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open || !m.unread {
		return Frame{}, false
	}
	m.unread = false
	return m.frame, true
}

// Close stops delivering frames and forgets the unread one.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.unread = false
	m.frame = Frame{}
	return nil
}

func (m *Mailbox) Stats() MailboxStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MailboxStats{Published: m.published, Dropped: m.drops}
}

func NewSynthetic(width, height int) *Synthetic {
	return &Synthetic{width: width, height: height}
}

func (s *Synthetic) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	return nil
}

func (s *Synthetic) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return Frame{}, false
	}
	s.seq++
	return Frame{Width: s.width, Height: s.height, Seq: s.seq, Captured: time.Now()}, true
}

func (s *Synthetic) Close() error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	return nil
}
