package ticket

import (
	"context"
	"time"

	vo "ticketd/internal/domain/ticket/valueobjects"
)

// AttachmentPayload is the raw upload accompanying a create or update. The
// repository writes the bytes to storage and inserts one attachment row per
// payload.
type AttachmentPayload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Filter selects tickets by the fields that are set; nil fields match
// everything.
type Filter struct {
	Status   *vo.Status
	Priority *vo.Priority
	Assignee *string
}

// Matches reports whether the ticket satisfies the filter.
func (f Filter) Matches(t *Ticket) bool {
	if f.Status != nil && t.Status() != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority() != *f.Priority {
		return false
	}
	if f.Assignee != nil && t.Assignee() != *f.Assignee {
		return false
	}
	return true
}

// Repository is the engine-agnostic persistence contract. Lookups by id
// return (nil, nil) when no row matches; "absent" is not an error at this
// level. Multi-row writes commit or roll back atomically; file side effects
// performed before a failed commit are not undone.
type Repository interface {
	Create(ctx context.Context, t *Ticket, payloads []AttachmentPayload) error
	Delete(ctx context.Context, id uint) (*Ticket, error)
	GetByID(ctx context.Context, id uint, includeAttachments bool) (*Ticket, error)
	List(ctx context.Context, includeAttachments bool) ([]*Ticket, error)
	Update(ctx context.Context, id uint, patch Patch, payloads []AttachmentPayload) (*Ticket, error)
	UpdateStatus(ctx context.Context, id uint, status vo.Status) (*Ticket, error)

	GetAttachment(ctx context.Context, attachmentID uint) (*Attachment, error)
	ReadAttachment(ctx context.Context, a *Attachment) ([]byte, error)
	RemoveAttachment(ctx context.Context, a *Attachment) error

	Count(ctx context.Context) (int64, error)
	CountMatching(ctx context.Context, f Filter) (int64, error)
	FindMatching(ctx context.Context, f Filter, includeAttachments bool) ([]*Ticket, error)
	FindByDateRange(ctx context.Context, start, end time.Time) ([]*Ticket, error)

	Ping(ctx context.Context) error
}
