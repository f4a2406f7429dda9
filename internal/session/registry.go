package session

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// CartLine mirrors one pending order line held for a session.
type CartLine struct {
	ItemID   int `json:"id"`
	Quantity int `json:"quantity"`
}

// User is the public view of a session, as served by GET /users.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type entry struct {
	name       string
	lastActive time.Time
	cart       []CartLine
}

// Registry tracks who is active and what they have pending in their cart.
// A cart never outlives its session: every removal path drops both.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Touch upserts the session and stamps it with the current time. An empty
// name keeps whatever name a previous touch recorded.
func (r *Registry) Touch(email, name string) {
	norm := normalize(email)
	if norm == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[norm]
	if !ok {
		e = &entry{}
		r.sessions[norm] = e
	}
	if name != "" {
		e.name = name
	}
	e.lastActive = r.now()
}

// SetCart replaces the pending cart for the session, creating the session
// if needed.
func (r *Registry) SetCart(email string, lines []CartLine) {
	norm := normalize(email)
	if norm == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[norm]
	if !ok {
		e = &entry{lastActive: r.now()}
		r.sessions[norm] = e
	}
	e.cart = append([]CartLine{}, lines...)
}

func (r *Registry) ClearCart(email string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[normalize(email)]; ok {
		e.cart = nil
	}
}

// ClearCarts empties every pending cart, keeping the sessions, and returns
// how many carts were dropped.
func (r *Registry) ClearCarts() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := 0
	for _, e := range r.sessions {
		if len(e.cart) > 0 {
			e.cart = nil
			cleared++
		}
	}
	return cleared
}

// Cart returns a copy of the session's pending cart.
func (r *Registry) Cart(email string) []CartLine {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[normalize(email)]
	if !ok {
		return nil
	}
	return append([]CartLine{}, e.cart...)
}

// Remove drops one session together with its cart.
func (r *Registry) Remove(email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, normalize(email))
}

// ExpireIdle removes every session idle for at least the threshold and
// returns how many were removed.
func (r *Registry) ExpireIdle(threshold time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-threshold)
	removed := 0
	for email, e := range r.sessions {
		if !e.lastActive.After(cutoff) {
			delete(r.sessions, email)
			removed++
		}
	}
	return removed
}

// ClearAll drops every session and cart and returns the count.
func (r *Registry) ClearAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.sessions)
	r.sessions = make(map[string]*entry)
	return n
}

// Users lists current sessions, most recently active first.
func (r *Registry) Users() []User {
	r.mu.Lock()
	defer r.mu.Unlock()

	type stamped struct {
		user User
		at   time.Time
	}
	all := make([]stamped, 0, len(r.sessions))
	for email, e := range r.sessions {
		all = append(all, stamped{user: User{Name: e.name, Email: email}, at: e.lastActive})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.After(all[j].at) })

	users := make([]User, len(all))
	for i, s := range all {
		users[i] = s.user
	}
	return users
}
