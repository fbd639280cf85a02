package relay

import (
	"sync"

	"github.com/nickjhughes/go-wormhole/msg"
)

//Outbound is the unbounded queue between the registry and one
//connection's writer. Any goroutine holding the registry lock may
//Push; only the owning connection reads Out or calls Close. The
//registry stores the *Outbound pointer as an opaque handle, so
//identity between two handles is pointer equality.
//
//Close must not be called until the handle has been unregistered
//from every mailbox; disconnect cleanup guarantees this.
type Outbound struct {
	in  chan msg.IMessage
	out chan msg.IMessage

	closing sync.Once
}

//NewOutbound creates the queue and starts its pump
func NewOutbound() *Outbound {
	q := &Outbound{
		in:  make(chan msg.IMessage),
		out: make(chan msg.IMessage),
	}
	go q.pump()
	return q
}

//pump shuttles messages from in to out through a growable backlog,
//so pushers never wait on the consumer
func (q *Outbound) pump() {
	var backlog []msg.IMessage

	in := q.in
	for in != nil || len(backlog) > 0 {
		var out chan msg.IMessage
		var next msg.IMessage
		if len(backlog) > 0 {
			out = q.out
			next = backlog[0]
		}

		select {
		case m, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			backlog = append(backlog, m)
		case out <- next:
			backlog = backlog[1:]
		}
	}

	close(q.out)
}

//Push enqueues a message. It never waits on the consumer
func (q *Outbound) Push(m msg.IMessage) {
	q.in <- m
}

//Out is the consumer side. It is closed once Close has been called
//and the backlog has drained
func (q *Outbound) Out() <-chan msg.IMessage {
	return q.out
}

//Close stops the queue. Messages already pushed still drain
func (q *Outbound) Close() {
	q.closing.Do(func() {
		close(q.in)
	})
}
