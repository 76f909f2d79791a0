package models

type TicketModel struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"size:200;not null"`
	Description string `gorm:"type:text;not null"`
	Assignee    string `gorm:"size:100;not null;index"`
	Status      string `gorm:"size:20;not null;index"`
	Priority    string `gorm:"size:20;not null;index"`
	PromiseDate int64  `gorm:"not null;index"`

	// Note: No gorm associations. The attachment relationship is managed by
	// application business logic; the schema itself declares the FK cascade.
}

func (TicketModel) TableName() string {
	return "tickets"
}

type AttachmentModel struct {
	ID          uint   `gorm:"primaryKey"`
	TicketID    uint   `gorm:"not null;index"`
	Name        string `gorm:"size:255;not null"`
	ContentType string `gorm:"size:100"`
	Size        int64  `gorm:"not null;default:0"`
	URL         string `gorm:"size:500;not null"`
}

func (AttachmentModel) TableName() string {
	return "attachments"
}
