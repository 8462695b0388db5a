package services

import "time"

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 3 * time.Second

// NotificationLevel classifies a notification for display.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationInfo    NotificationLevel = "info"
	NotificationError   NotificationLevel = "error"
)

// Notification is a transient user-facing message.
type Notification struct {
	Message   string
	Level     NotificationLevel
	CreatedAt time.Time
	ExpiresAt time.Time
}

// notificationBoard holds at most one notification. Callers guard it with their own lock.
type notificationBoard struct {
	ttl     time.Duration
	current *Notification
}

func newNotificationBoard(ttl time.Duration) notificationBoard {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return notificationBoard{ttl: ttl}
}

func (b *notificationBoard) post(now time.Time, level NotificationLevel, message string) {
	b.current = &Notification{
		Message:   message,
		Level:     level,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	}
}

func (b *notificationBoard) active(now time.Time) (Notification, bool) {
	if b.current == nil {
		return Notification{}, false
	}
	if !now.Before(b.current.ExpiresAt) {
		b.current = nil
		return Notification{}, false
	}
	return *b.current, true
}

func (b *notificationBoard) dismiss() {
	b.current = nil
}
