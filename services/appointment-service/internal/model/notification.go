package model

import "time"

type Notification struct {
	ID        string
	Content   string
	UserID    int64
	Read      bool
	CreatedAt time.Time
}
