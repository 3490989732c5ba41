package models

import "time"

// Device platforms.
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformWeb     = "web"
)

// PushToken is a device registration. A device can be shared by several users, so
// the per-user login state lives in the owned Sessions rather than on User.
type PushToken struct {
	BaseModel

	DeviceID string             `gorm:"type:varchar(255);uniqueIndex;not null" json:"device_id"`
	Token    string             `gorm:"type:varchar(512);uniqueIndex;not null" json:"-"`
	Platform string             `gorm:"type:varchar(16);not null" json:"platform"`
	LastUsed *time.Time         `json:"last_used,omitempty"`
	Sessions []PushTokenSession `gorm:"foreignKey:PushTokenID;constraint:OnDelete:CASCADE" json:"sessions,omitempty"`
}

// PushTokenSession is one user's login state on a device. Rows are addressed by
// (push_token_id, user_id) and updated with predicate-scoped statements so that
// concurrent changes to different users of the same device do not clobber each other.
type PushTokenSession struct {
	BaseModel

	PushTokenID        string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_push_token_session_user" json:"push_token_id"`
	UserID             string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_push_token_session_user;index" json:"user_id"`
	NotificationActive bool       `gorm:"not null;index" json:"notification_active"`
	LoggedInStatus     bool       `gorm:"not null;index" json:"logged_in_status"`
	LastLoggedInAt     *time.Time `gorm:"index" json:"last_logged_in_at,omitempty"`
	LastLoggedOutAt    *time.Time `json:"last_logged_out_at,omitempty"`
}

// SessionFor returns the session entry owned by userID, if any.
func (p *PushToken) SessionFor(userID string) (*PushTokenSession, bool) {
	for i := range p.Sessions {
		if p.Sessions[i].UserID == userID {
			return &p.Sessions[i], true
		}
	}
	return nil, false
}
