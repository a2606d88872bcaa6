package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher is a persisted roster entry. Classes is frozen at creation.
type Teacher struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Email     string         `db:"email" json:"email"`
	Phone     *string        `db:"phone" json:"phone,omitempty"`
	Subject   string         `db:"subject" json:"subject"`
	Classes   pq.StringArray `db:"classes" json:"classes"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search   string
	Class    string
	Page     int
	PageSize int
}
