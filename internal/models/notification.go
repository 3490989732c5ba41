package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification delivery statuses. Sent and failed are terminal.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

// Notification records one dispatch of a business event to its recipients.
type Notification struct {
	BaseModel

	Type        string                                `gorm:"type:varchar(64);index;not null" json:"type"`
	Title       string                                `gorm:"type:varchar(255);not null" json:"title"`
	Body        string                                `gorm:"type:text" json:"body"`
	Data        datatypes.JSONType[map[string]string] `json:"data"`
	RecipientID *string                               `gorm:"type:varchar(36);index" json:"recipient_id,omitempty"`
	Recipients  datatypes.JSONSlice[string]           `json:"recipients"`
	Tokens      datatypes.JSONSlice[string]           `json:"-"`
	Status      string                                `gorm:"type:varchar(16);index;not null" json:"status"`
	Result      datatypes.JSON                        `json:"result,omitempty"`
	SentAt      *time.Time                            `json:"sent_at,omitempty"`
	AuthorID    string                                `gorm:"type:varchar(36)" json:"author_id,omitempty"`
	ReadBy      datatypes.JSONSlice[string]           `json:"read_by"`
}

// IsTerminal reports whether the notification left the pending state.
func (n *Notification) IsTerminal() bool {
	return n.Status == NotificationStatusSent || n.Status == NotificationStatusFailed
}
