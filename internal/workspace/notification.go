package workspace

import "time"

// NotificationKind classifies a notification for display.
type NotificationKind string

const (
	NotifyError   NotificationKind = "error"
	NotifySuccess NotificationKind = "success"
	NotifyInfo    NotificationKind = "info"
)

// Notification is a transient message shown to the user.
type Notification struct {
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// Live reports whether the notification is still visible at now.
func (n *Notification) Live(now time.Time) bool {
	return n != nil && now.Before(n.ExpiresAt)
}
