package mailer

import "context"

// Message is one outbound notification.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender dispatches a message. Implementations must be safe for concurrent
// use; the recovery scanner calls Send from a worker pool.
type Sender interface {
	Send(ctx context.Context, m Message) error
}
