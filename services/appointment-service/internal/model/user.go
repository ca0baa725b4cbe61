package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrSlotTaken = errors.New("slot already taken")
	ErrDuplicate = errors.New("already exists")
)

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Provider     bool
	AvatarID     *int64
	CreatedAt    time.Time
}

// UserSummary is the public projection of a user attached to appointments.
type UserSummary struct {
	ID     int64
	Name   string
	Email  string
	Avatar *File
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

type File struct {
	ID   int64
	Name string
	Path string
}

// URL resolves the public address of the file under baseURL.
func (f File) URL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/files/" + f.Path
}
