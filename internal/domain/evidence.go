package domain

import "time"

// Evidence references a file attached to a ticket. The payload itself lives in
// blob storage; StoredLocation is the key returned by that storage.
type Evidence struct {
	ID               string
	TicketID         string
	UploadedByUserID string
	Filename         string
	StoredLocation   string
	MimeType         string
	Size             int64
	CreatedAt        time.Time
}
