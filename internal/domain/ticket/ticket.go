package ticket

import (
	"fmt"
	"time"

	vo "ticketd/internal/domain/ticket/valueobjects"
)

type Ticket struct {
	id          uint
	title       string
	description string
	assignee    string
	status      vo.Status
	priority    vo.Priority
	promiseDate time.Time
	attachments []*Attachment
}

// NewTicket creates a ticket draft. The promise date is always set to "now"
// in UTC; it is never taken from input.
func NewTicket(
	title string,
	description string,
	assignee string,
	status vo.Status,
	priority vo.Priority,
) (*Ticket, error) {
	if len(title) == 0 {
		return nil, fmt.Errorf("title is required")
	}
	if len(title) > 200 {
		return nil, fmt.Errorf("title exceeds maximum length of 200 characters")
	}
	if len(description) == 0 {
		return nil, fmt.Errorf("description is required")
	}
	if len(assignee) == 0 {
		return nil, fmt.Errorf("assignee is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid status")
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("invalid priority")
	}

	return &Ticket{
		title:       title,
		description: description,
		assignee:    assignee,
		status:      status,
		priority:    priority,
		promiseDate: time.Now().UTC(),
		attachments: []*Attachment{},
	}, nil
}

// ReconstructTicket rebuilds a ticket from persisted state.
func ReconstructTicket(
	id uint,
	title string,
	description string,
	assignee string,
	status vo.Status,
	priority vo.Priority,
	promiseDate time.Time,
) (*Ticket, error) {
	if id == 0 {
		return nil, fmt.Errorf("ticket ID cannot be zero")
	}
	if len(title) == 0 {
		return nil, fmt.Errorf("title is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid status")
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("invalid priority")
	}

	return &Ticket{
		id:          id,
		title:       title,
		description: description,
		assignee:    assignee,
		status:      status,
		priority:    priority,
		promiseDate: promiseDate,
		attachments: []*Attachment{},
	}, nil
}

func (t *Ticket) ID() uint {
	return t.id
}

func (t *Ticket) Title() string {
	return t.title
}

func (t *Ticket) Description() string {
	return t.description
}

func (t *Ticket) Assignee() string {
	return t.assignee
}

func (t *Ticket) Status() vo.Status {
	return t.status
}

func (t *Ticket) Priority() vo.Priority {
	return t.priority
}

func (t *Ticket) PromiseDate() time.Time {
	return t.promiseDate
}

func (t *Ticket) Attachments() []*Attachment {
	attachmentsCopy := make([]*Attachment, len(t.attachments))
	copy(attachmentsCopy, t.attachments)
	return attachmentsCopy
}

func (t *Ticket) SetID(id uint) error {
	if t.id != 0 {
		return fmt.Errorf("ticket ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("ticket ID cannot be zero")
	}
	t.id = id
	return nil
}

func (t *Ticket) AddAttachment(a *Attachment) error {
	if a == nil {
		return fmt.Errorf("attachment cannot be nil")
	}
	t.attachments = append(t.attachments, a)
	return nil
}

// Patch carries a partial update. Empty fields leave the current value
// unchanged.
type Patch struct {
	Title       string
	Description string
	Assignee    string
	Status      string
	Priority    string
}

// ApplyPatch applies the non-empty fields of the patch and resets the
// promise date to "now", matching full-update semantics.
func (t *Ticket) ApplyPatch(p Patch) error {
	if len(p.Title) > 0 {
		if len(p.Title) > 200 {
			return fmt.Errorf("title exceeds maximum length of 200 characters")
		}
		t.title = p.Title
	}
	if len(p.Description) > 0 {
		t.description = p.Description
	}
	if len(p.Assignee) > 0 {
		t.assignee = p.Assignee
	}
	if len(p.Status) > 0 {
		status, err := vo.NewStatus(p.Status)
		if err != nil {
			return err
		}
		t.status = status
	}
	if len(p.Priority) > 0 {
		priority, err := vo.NewPriority(p.Priority)
		if err != nil {
			return err
		}
		t.priority = priority
	}

	t.promiseDate = time.Now().UTC()
	return nil
}

// ChangeStatus updates only the status field and resets the promise date.
func (t *Ticket) ChangeStatus(newStatus vo.Status) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("invalid status: %s", newStatus)
	}
	t.status = newStatus
	t.promiseDate = time.Now().UTC()
	return nil
}

func (t *Ticket) Validate() error {
	if len(t.title) == 0 {
		return fmt.Errorf("title is required")
	}
	if len(t.description) == 0 {
		return fmt.Errorf("description is required")
	}
	if len(t.assignee) == 0 {
		return fmt.Errorf("assignee is required")
	}
	if !t.status.IsValid() {
		return fmt.Errorf("invalid status")
	}
	if !t.priority.IsValid() {
		return fmt.Errorf("invalid priority")
	}
	return nil
}
