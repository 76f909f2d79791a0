package ticket

import (
	"context"

	"ticketd/internal/application/ticket/dto"
)

// Cache is the ticket cache port. Get, set, and remove are each a single
// atomic round trip; read-modify-write sequences built on top of them are
// not atomic as a unit.
type Cache interface {
	GetTicket(ctx context.Context, id uint) (*dto.TicketDTO, bool, error)
	SetTicket(ctx context.Context, t dto.TicketDTO) error
	RemoveTicket(ctx context.Context, id uint) error

	GetAll(ctx context.Context) ([]dto.TicketDTO, bool, error)
	SetAll(ctx context.Context, tickets []dto.TicketDTO) error
	RemoveAll(ctx context.Context) error
}

// Migrator applies pending schema migrations during startup.
type Migrator interface {
	Apply(ctx context.Context) error
}
