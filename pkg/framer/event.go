// ABOUTME: Lifecycle events emitted by the framer: START, ITEM, and STOP
// ABOUTME: ITEM events carry normalized text; START and STOP carry none

package framer

import "strconv"

// Kind identifies a framing event.
type Kind int

const (
	Start Kind = iota + 1
	Item
	Stop
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "START"
	case Item:
		return "ITEM"
	case Stop:
		return "STOP"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Event is one framing decision. Text is only set for Item.
type Event struct {
	Kind Kind
	Text string
}

func (e Event) String() string {
	if e.Kind == Item {
		return "ITEM(" + strconv.Quote(e.Text) + ")"
	}
	return e.Kind.String()
}
