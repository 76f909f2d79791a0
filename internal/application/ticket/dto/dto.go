package dto

import (
	"time"

	"ticketd/internal/domain/ticket"
)

// TicketDTO is the serialized snapshot of a ticket used both as the HTTP
// response shape and as the cache entry value.
type TicketDTO struct {
	ID          uint            `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Assignee    string          `json:"assignee"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	PromiseDate time.Time       `json:"promise_date"`
	Attachments []AttachmentDTO `json:"attachments"`
}

type AttachmentDTO struct {
	ID          uint   `json:"id"`
	TicketID    uint   `json:"ticket_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

func FromDomain(t *ticket.Ticket) TicketDTO {
	attachments := make([]AttachmentDTO, 0, len(t.Attachments()))
	for _, a := range t.Attachments() {
		attachments = append(attachments, AttachmentFromDomain(a))
	}

	return TicketDTO{
		ID:          t.ID(),
		Title:       t.Title(),
		Description: t.Description(),
		Assignee:    t.Assignee(),
		Status:      t.Status().String(),
		Priority:    t.Priority().String(),
		PromiseDate: t.PromiseDate(),
		Attachments: attachments,
	}
}

func FromDomainList(tickets []*ticket.Ticket) []TicketDTO {
	dtos := make([]TicketDTO, len(tickets))
	for i, t := range tickets {
		dtos[i] = FromDomain(t)
	}
	return dtos
}

func AttachmentFromDomain(a *ticket.Attachment) AttachmentDTO {
	return AttachmentDTO{
		ID:          a.ID(),
		TicketID:    a.TicketID(),
		Name:        a.Name(),
		ContentType: a.ContentType(),
		Size:        a.Size(),
		URL:         a.URL(),
	}
}
