package narration

import (
	"context"
	"log"
	"sync"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/apperr"
)

var errUnavailable = apperr.CapabilityUnavailable("speech narration is not available")

type State string

const (
	StateIdle     State = "idle"
	StateSpeaking State = "speaking"
)

// EndReason tells onEnd why a session finished.
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndCancelled EndReason = "cancelled"
	EndError     EndReason = "error"
)

// EndFunc is called exactly once per started session.
type EndFunc func(reason EndReason, err error)

// Snapshot is the presentation-facing view of the machine. Highlight is the
// prefix of the active text that has been spoken so far.
type Snapshot struct {
	State     State
	BlockID   string
	SessionID uint64
	Progress  int
	Highlight string
}

// Listener is notified after every visible change, in order. It must not
// call back into Start, Stop or Toggle.
type Listener func(Snapshot)

// Observer receives session outcomes and stale-event discards.
type Observer interface {
	NarrationEnded(reason string)
	StaleEventDiscarded()
}

type session struct {
	id       uint64
	blockID  string
	text     []rune
	progress int
	cancel   context.CancelFunc
	onEnd    EndFunc
}

type Option func(*Machine)

func WithListener(l Listener) Option {
	return func(m *Machine) { m.listener = l }
}

func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observer = o }
}

// Machine owns the single active narration session. Every narrator event is
// tagged with the session that produced it; events for any other session are
// discarded.
type Machine struct {
	narrator Narrator
	listener Listener
	observer Observer

	mu     sync.Mutex
	lastID uint64
	active *session
	seq    uint64

	emitMu  sync.Mutex
	emitted uint64
}

// frame is a snapshot stamped with the order it was taken in.
type frame struct {
	seq  uint64
	snap Snapshot
}

func NewMachine(narrator Narrator, opts ...Option) *Machine {
	if narrator == nil {
		narrator = Unavailable{}
	}
	m := &Machine{narrator: narrator}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Available reports whether Start can succeed.
func (m *Machine) Available() bool {
	return m.narrator.Available()
}

// Start narrates text for blockID. An active session is cancelled first and
// its onEnd fires before the new session begins speaking. When the narrator
// is unavailable Start returns CAPABILITY_UNAVAILABLE and the machine stays
// Idle.
func (m *Machine) Start(blockID, text string, onEnd EndFunc) (uint64, error) {
	if !m.narrator.Available() {
		return 0, errUnavailable
	}

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	stopped := m.finishLocked(EndCancelled, nil)
	m.lastID++
	s := &session{id: m.lastID, blockID: blockID, text: []rune(text), cancel: cancel, onEnd: onEnd}
	m.active = s
	started := m.frameLocked()
	m.mu.Unlock()

	stopped.run(m)
	m.emit(started)

	if err := m.narrator.Speak(ctx, text, &sessionEvents{machine: m, id: s.id}); err != nil {
		log.Printf("narration: session %d failed to start: %v", s.id, err)
		_ = m.fail(s.id, err)
		return s.id, err
	}
	return s.id, nil
}

// Toggle stops the session when blockID is the block being spoken, and
// starts narrating it otherwise. The returned id is 0 when Toggle stopped.
func (m *Machine) Toggle(blockID, text string, onEnd EndFunc) (uint64, error) {
	m.mu.Lock()
	speakingThis := m.active != nil && m.active.blockID == blockID
	m.mu.Unlock()

	if speakingThis && m.Stop() {
		return 0, nil
	}
	return m.Start(blockID, text, onEnd)
}

// Stop cancels the active session. The machine is Idle when Stop returns.
// It reports whether a session was running.
func (m *Machine) Stop() bool {
	m.mu.Lock()
	stopped := m.finishLocked(EndCancelled, nil)
	m.mu.Unlock()

	if stopped == nil {
		return false
	}
	stopped.run(m)
	return true
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// progress applies a boundary event. The highlighted prefix never shrinks
// and never extends past the end of the text.
func (m *Machine) progress(id uint64, charIndex int) error {
	m.mu.Lock()
	s := m.active
	if s == nil || s.id != id {
		m.mu.Unlock()
		return m.discard(id)
	}
	next := charIndex
	if next > len(s.text) {
		next = len(s.text)
	}
	if next <= s.progress {
		m.mu.Unlock()
		return nil
	}
	s.progress = next
	f := m.frameLocked()
	m.mu.Unlock()

	m.emit(f)
	return nil
}

func (m *Machine) complete(id uint64) error {
	return m.end(id, EndCompleted, nil)
}

func (m *Machine) fail(id uint64, err error) error {
	return m.end(id, EndError, err)
}

func (m *Machine) end(id uint64, reason EndReason, err error) error {
	m.mu.Lock()
	if m.active == nil || m.active.id != id {
		m.mu.Unlock()
		return m.discard(id)
	}
	ended := m.finishLocked(reason, err)
	m.mu.Unlock()

	ended.run(m)
	return nil
}

func (m *Machine) discard(id uint64) error {
	if m.observer != nil {
		m.observer.StaleEventDiscarded()
	}
	return apperr.StaleSession(id)
}

// ending carries the callbacks of a finished session out of the lock.
type ending struct {
	session *session
	reason  EndReason
	err     error
	idle    frame
}

func (e *ending) run(m *Machine) {
	if e == nil {
		return
	}
	e.session.cancel()
	m.emit(e.idle)
	if m.observer != nil {
		m.observer.NarrationEnded(string(e.reason))
	}
	if e.session.onEnd != nil {
		e.session.onEnd(e.reason, e.err)
	}
}

func (m *Machine) finishLocked(reason EndReason, err error) *ending {
	if m.active == nil {
		return nil
	}
	s := m.active
	m.active = nil
	return &ending{session: s, reason: reason, err: err, idle: m.frameLocked()}
}

func (m *Machine) snapshotLocked() Snapshot {
	s := m.active
	if s == nil {
		return Snapshot{State: StateIdle}
	}
	return Snapshot{
		State:     StateSpeaking,
		BlockID:   s.blockID,
		SessionID: s.id,
		Progress:  s.progress,
		Highlight: string(s.text[:s.progress]),
	}
}

func (m *Machine) frameLocked() frame {
	m.seq++
	return frame{seq: m.seq, snap: m.snapshotLocked()}
}

// emit delivers frames in sequence order and drops any frame older than the
// last one delivered.
func (m *Machine) emit(f frame) {
	if m.listener == nil {
		return
	}
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	if f.seq <= m.emitted {
		return
	}
	m.emitted = f.seq
	m.listener(f.snap)
}

// sessionEvents binds narrator callbacks to the session they were issued for.
type sessionEvents struct {
	machine *Machine
	id      uint64
}

func (e *sessionEvents) Boundary(charIndex int) {
	_ = e.machine.progress(e.id, charIndex)
}

func (e *sessionEvents) Done() {
	_ = e.machine.complete(e.id)
}

func (e *sessionEvents) Failed(err error) {
	_ = e.machine.fail(e.id, err)
}
