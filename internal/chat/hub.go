package chat

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dbayan/storefront/internal/metrics"
)

var (
	ErrAlreadyQueued = errors.New("already queued")
	ErrNotWaiting    = errors.New("not waiting")
	ErrNoActivePair  = errors.New("no active pair")
)

// Conn is one live chat channel. Send must be safe for concurrent use and
// must return an error once the underlying connection is closed.
type Conn interface {
	Send(f Frame) error
	Close() error
}

type waiter struct {
	email      string
	name       string
	conn       Conn
	enqueuedAt time.Time
}

type pair struct {
	email    string
	user     Conn
	operator Conn
}

// Hub owns the waiting queue and the active pairs. A visitor identifier
// moves Waiting -> Paired -> gone; an operator holds any number of pairs
// at once but a visitor is never in more than one. All transitions run
// under one lock, so a claim removes the waiter and creates the pair in a
// single step and a second claim of the same visitor always fails.
type Hub struct {
	log *zap.Logger

	mu        sync.Mutex
	waiters   map[string]*waiter
	pairs     map[string]*pair
	operators map[Conn]struct{}
	now       func() time.Time
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:       log,
		waiters:   make(map[string]*waiter),
		pairs:     make(map[string]*pair),
		operators: make(map[Conn]struct{}),
		now:       time.Now,
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AddOperator registers an operator channel and sends it the current
// waiting list.
func (h *Hub) AddOperator(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.operators[c] = struct{}{}
	_ = c.Send(Frame{Type: FrameQueueUpdate, Waiting: h.waitingLocked()})
}

// Enqueue puts a visitor on the waiting queue, ordered by arrival, and
// pushes the updated list to every operator.
func (h *Hub) Enqueue(email, name string, c Conn) error {
	norm := normalize(email)

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.waiters[norm]; ok {
		return fmt.Errorf("visitor %s: %w", norm, ErrAlreadyQueued)
	}
	if _, ok := h.pairs[norm]; ok {
		return fmt.Errorf("visitor %s: %w", norm, ErrAlreadyQueued)
	}

	h.waiters[norm] = &waiter{email: norm, name: name, conn: c, enqueuedAt: h.now()}
	metrics.ChatWaiting.Set(float64(len(h.waiters)))
	h.log.Info("visitor queued for support chat", zap.String("email", norm))

	h.broadcastQueueLocked()
	return nil
}

// Claim pairs the given waiting visitor with the operator channel. The
// waiter leaves the queue and both sides get a chatStarted frame.
func (h *Hub) Claim(operator Conn, email string) error {
	norm := normalize(email)

	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.waiters[norm]
	if !ok {
		return fmt.Errorf("visitor %s: %w", norm, ErrNotWaiting)
	}

	delete(h.waiters, norm)
	h.pairs[norm] = &pair{email: norm, user: w.conn, operator: operator}
	metrics.ChatWaiting.Set(float64(len(h.waiters)))
	metrics.ChatPairs.Set(float64(len(h.pairs)))

	started := Frame{Type: FrameChatStarted, Email: norm, Name: w.name}
	_ = w.conn.Send(started)
	_ = operator.Send(started)

	h.log.Info("support chat started", zap.String("email", norm))
	h.broadcastQueueLocked()
	return nil
}

// RelayFromUser forwards visitor text to the paired operator, tagged with
// the visitor's identity.
func (h *Hub) RelayFromUser(email, name, text string) error {
	norm := normalize(email)

	h.mu.Lock()
	p, ok := h.pairs[norm]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("visitor %s: %w", norm, ErrNoActivePair)
	}

	if err := p.operator.Send(Frame{Type: FrameMessage, Email: norm, From: name, Text: text}); err != nil {
		h.dropPair(norm, p.user)
		return fmt.Errorf("operator channel closed for %s: %w", norm, ErrNoActivePair)
	}
	return nil
}

// RelayFromOperator forwards operator text to the visitor identified by
// email.
func (h *Hub) RelayFromOperator(email, text string) error {
	norm := normalize(email)

	h.mu.Lock()
	p, ok := h.pairs[norm]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("visitor %s: %w", norm, ErrNoActivePair)
	}

	if err := p.user.Send(Frame{Type: FrameMessage, Email: norm, From: "support", Text: text}); err != nil {
		h.dropPair(norm, p.operator)
		return fmt.Errorf("user channel closed for %s: %w", norm, ErrNoActivePair)
	}
	return nil
}

// dropPair removes the pair and tells the surviving side the chat ended.
func (h *Hub) dropPair(email string, survivor Conn) {
	h.mu.Lock()
	p, ok := h.pairs[email]
	if ok {
		delete(h.pairs, email)
	}
	metrics.ChatPairs.Set(float64(len(h.pairs)))
	h.mu.Unlock()

	if ok && survivor != nil {
		_ = survivor.Send(Frame{Type: FrameChatEnded, Email: p.email})
	}
}

// DropUser handles a visitor channel going away: a waiting visitor leaves
// the queue silently, a paired one ends the chat with a notice to the
// operator.
func (h *Hub) DropUser(email string) {
	norm := normalize(email)

	h.mu.Lock()
	if _, ok := h.waiters[norm]; ok {
		delete(h.waiters, norm)
		metrics.ChatWaiting.Set(float64(len(h.waiters)))
		h.log.Info("waiting visitor left", zap.String("email", norm))
		h.broadcastQueueLocked()
		h.mu.Unlock()
		return
	}

	p, ok := h.pairs[norm]
	if ok {
		delete(h.pairs, norm)
	}
	metrics.ChatPairs.Set(float64(len(h.pairs)))
	h.mu.Unlock()

	if ok {
		h.log.Info("visitor disconnected from active chat", zap.String("email", norm))
		_ = p.operator.Send(Frame{Type: FrameChatEnded, Email: norm})
	}
}

// DropOperator tears down every pair owned by the operator channel,
// notifying each paired visitor. Waiters stay queued for the next
// operator.
func (h *Hub) DropOperator(c Conn) {
	h.mu.Lock()
	delete(h.operators, c)

	var orphaned []*pair
	for email, p := range h.pairs {
		if p.operator == c {
			orphaned = append(orphaned, p)
			delete(h.pairs, email)
		}
	}
	metrics.ChatPairs.Set(float64(len(h.pairs)))
	h.mu.Unlock()

	for _, p := range orphaned {
		_ = p.user.Send(Frame{Type: FrameChatEnded, Email: p.email})
	}
	if len(orphaned) > 0 {
		h.log.Info("operator disconnected, chats ended", zap.Int("pairs", len(orphaned)))
	}
}

// Waiting returns the queue in arrival order, earliest first.
func (h *Hub) Waiting() []WaiterInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitingLocked()
}

func (h *Hub) waitingLocked() []WaiterInfo {
	now := h.now()
	list := make([]*waiter, 0, len(h.waiters))
	for _, w := range h.waiters {
		list = append(list, w)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].enqueuedAt.Before(list[j].enqueuedAt) })

	infos := make([]WaiterInfo, len(list))
	for i, w := range list {
		infos[i] = WaiterInfo{
			Email:   w.email,
			Name:    w.name,
			Waiting: int64(now.Sub(w.enqueuedAt).Seconds()),
		}
	}
	return infos
}

func (h *Hub) broadcastQueueLocked() {
	frame := Frame{Type: FrameQueueUpdate, Waiting: h.waitingLocked()}
	for c := range h.operators {
		_ = c.Send(frame)
	}
}
