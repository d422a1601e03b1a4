// Package tickets provides the sinks that record escalated support
// requests. A Sink is the side-effecting collaborator invoked by the
// ticket-creation stage; creating a ticket is deliberately not safe
// to retry, so sinks reject duplicate IDs instead of upserting.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"
)

// ErrDuplicate is returned when a ticket with the same ID has already
// been recorded.
var ErrDuplicate = errors.New("ticket already exists")

// ErrNotFound is returned by Get when no ticket carries the ID.
var ErrNotFound = errors.New("ticket not found")

// Ticket is one escalated request handed to a human agent.
type Ticket struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Category  string    `json:"category"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink records tickets for escalated requests.
type Sink interface {
	// Create records the ticket. It fails with ErrDuplicate when the
	// ticket ID was already recorded.
	Create(ctx context.Context, t Ticket) error
}

// ID derives the ticket identifier deterministically from the request
// ID, so reprocessing the same request names the same ticket.
// Deriving from the message content would make IDs depend on hash
// randomization of the payload; the request ID is the stable handle.
func ID(requestID string) string {
	h := fnv.New32a()
	h.Write([]byte(requestID))
	return fmt.Sprintf("TICKET-%04d", h.Sum32()%10000)
}
