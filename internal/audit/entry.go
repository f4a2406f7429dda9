package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry records one mutating request as seen by the boundary.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Handler   string    `json:"handler"`
	Actor     string    `json:"actor,omitempty"`
	Status    int       `json:"status"`
	Request   string    `json:"request,omitempty"`
	Response  string    `json:"response,omitempty"`
}
