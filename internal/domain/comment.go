package domain

import "time"

// Comment is an immutable note on a ticket thread.
type Comment struct {
	ID        string
	TicketID  string
	UserID    string
	Body      string
	CreatedAt time.Time
}
