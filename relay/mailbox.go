package relay

import (
	"github.com/nickjhughes/go-wormhole/msg"
)

//MailboxMessage is an individual entry within a parent Mailbox.
//Bodies are opaque to the server; clients encrypt them end-to-end
type MailboxMessage struct {
	//ID is the message ID chosen by the sending client
	ID string

	//ServerRX records when the server received the add command
	ServerRX float64

	//Side identifies the sending client
	Side string

	//Phase labels the message within the mailbox
	Phase msg.Phase

	//Body holds the raw (already hex-decoded) payload bytes
	Body []byte
}

//Subscriber pairs a side with the outbound queue its connection
//drains
type Subscriber struct {
	Side  string
	Queue *Outbound
}

//Mailbox holds the append-only message log for one rendezvous and
//the clients currently subscribed to it. Methods are called with
//the service lock held, so there is no locking here
type Mailbox struct {
	ID string

	Messages    []MailboxMessage
	Subscribers []Subscriber
}

//NewMailbox returns an empty mailbox with the provided ID
func NewMailbox(id string) *Mailbox {
	return &Mailbox{ID: id}
}

//forward wraps a stored message in its wire envelope. The envelope
//keeps the original command ID and receive time; transmission time
//is stamped fresh for every delivery
func forward(m MailboxMessage) msg.PeerMessage {
	env := msg.NewServerMessage(msg.TypeMessage)
	env.ID = m.ID
	env.ServerRX = m.ServerRX

	return msg.PeerMessage{
		Message: env,
		Side:    m.Side,
		Phase:   m.Phase,
		Body:    msg.HexBytes(m.Body),
	}
}

//AddMessage appends a message and broadcasts it to every current
//subscriber, including the sender's own subscription
func (m *Mailbox) AddMessage(mm MailboxMessage) {
	for _, sub := range m.Subscribers {
		sub.Queue.Push(forward(mm))
	}

	m.Messages = append(m.Messages, mm)
}

//Subscribe adds a side to the mailbox and replays the stored
//history to it in insertion order. A side that is already
//subscribed is left alone. Returns the resulting subscriber count
func (m *Mailbox) Subscribe(side string, q *Outbound) int {
	for _, sub := range m.Subscribers {
		if sub.Side == side {
			return len(m.Subscribers)
		}
	}

	for _, mm := range m.Messages {
		q.Push(forward(mm))
	}

	m.Subscribers = append(m.Subscribers, Subscriber{Side: side, Queue: q})
	return len(m.Subscribers)
}

//Unsubscribe removes the subscriber with the matching side.
//Unknown sides are ignored
func (m *Mailbox) Unsubscribe(side string) {
	kept := m.Subscribers[:0]
	for _, sub := range m.Subscribers {
		if sub.Side != side {
			kept = append(kept, sub)
		}
	}
	m.Subscribers = kept
}

//RemoveQueue removes every subscriber holding the given queue
//handle. Identity is pointer equality
func (m *Mailbox) RemoveQueue(q *Outbound) {
	kept := m.Subscribers[:0]
	for _, sub := range m.Subscribers {
		if sub.Queue != q {
			kept = append(kept, sub)
		}
	}
	m.Subscribers = kept
}

//HasSubscriber reports whether the side is currently subscribed
func (m *Mailbox) HasSubscriber(side string) bool {
	for _, sub := range m.Subscribers {
		if sub.Side == side {
			return true
		}
	}
	return false
}

//Empty reports whether the mailbox has no subscribers left and can
//be reaped
func (m *Mailbox) Empty() bool {
	return len(m.Subscribers) == 0
}
