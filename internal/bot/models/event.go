package models

// EventKind enumerates the inbound event shapes the router reacts to.
type EventKind int

const (
	EventCommand EventKind = iota
	EventMessage
	EventCallback
	EventPreCheckout
	EventPaymentDone
)

// Event is a transport-independent inbound event. Exactly one of the
// kind-specific field groups is meaningful, selected by Kind.
type Event struct {
	Kind EventKind

	UserID      int64
	ChatID      int64
	ChatPrivate bool

	// EventCommand
	Command string
	Args    []string

	// EventMessage
	Content Content

	// EventCallback
	CallbackID string
	Token      string
	MessageID  int

	// EventPreCheckout / EventPaymentDone
	PreCheckoutID string
	Payload       string
}
