package ticket

import "fmt"

// Attachment is a file owned by exactly one ticket. The URL field holds the
// storage location of the uploaded bytes.
type Attachment struct {
	id          uint
	ticketID    uint
	name        string
	contentType string
	size        int64
	url         string
}

func NewAttachment(name, contentType string, size int64, url string) (*Attachment, error) {
	if len(name) == 0 {
		return nil, fmt.Errorf("attachment name is required")
	}
	if size < 0 {
		return nil, fmt.Errorf("attachment size cannot be negative")
	}
	if len(url) == 0 {
		return nil, fmt.Errorf("attachment storage location is required")
	}

	return &Attachment{
		name:        name,
		contentType: contentType,
		size:        size,
		url:         url,
	}, nil
}

func ReconstructAttachment(id, ticketID uint, name, contentType string, size int64, url string) (*Attachment, error) {
	if id == 0 {
		return nil, fmt.Errorf("attachment ID cannot be zero")
	}
	if ticketID == 0 {
		return nil, fmt.Errorf("attachment ticket ID cannot be zero")
	}
	if len(name) == 0 {
		return nil, fmt.Errorf("attachment name is required")
	}

	return &Attachment{
		id:          id,
		ticketID:    ticketID,
		name:        name,
		contentType: contentType,
		size:        size,
		url:         url,
	}, nil
}

func (a *Attachment) ID() uint {
	return a.id
}

func (a *Attachment) TicketID() uint {
	return a.ticketID
}

func (a *Attachment) Name() string {
	return a.name
}

func (a *Attachment) ContentType() string {
	return a.contentType
}

func (a *Attachment) Size() int64 {
	return a.size
}

func (a *Attachment) URL() string {
	return a.url
}

func (a *Attachment) SetID(id uint) error {
	if a.id != 0 {
		return fmt.Errorf("attachment ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("attachment ID cannot be zero")
	}
	a.id = id
	return nil
}

func (a *Attachment) SetTicketID(ticketID uint) error {
	if ticketID == 0 {
		return fmt.Errorf("attachment ticket ID cannot be zero")
	}
	a.ticketID = ticketID
	return nil
}
