package graphqllink

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Subscription is the result stream of one subscription operation. Events
// arrive on Events until the stream ends; Err then tells why. A subscription
// cannot be restarted.
type Subscription struct {
	id        string
	op        *Operation
	transport *WebSocketTransport
	// conn is the connection the start message went out on; guarded by transport.mu.
	conn *websocket.Conn

	events chan *Response
	done   chan struct{}
	once   sync.Once
	err    error

	mu       sync.Mutex
	finished bool
}

func newSubscription(t *WebSocketTransport, id string, op *Operation) *Subscription {
	return &Subscription{
		id:        id,
		op:        op,
		transport: t,
		events:    make(chan *Response),
		done:      make(chan struct{}),
	}
}

func (s *Subscription) ID() string { return s.id }

func (s *Subscription) Operation() *Operation { return s.op }

// Events yields results in the order the server emits them. It is closed when
// the subscription ends.
func (s *Subscription) Events() <-chan *Response { return s.events }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns nil while the stream is open or after a clean end, the cause otherwise.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close stops the subscription without affecting others on the same connection.
func (s *Subscription) Close() error {
	var err error
	if s.transport != nil {
		err = s.transport.unsubscribe(s.id)
	}
	s.finish(nil)
	return err
}

// deliver blocks until the consumer takes resp or the subscription ends.
func (s *Subscription) deliver(resp *Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	select {
	case s.events <- resp:
	case <-s.done:
	}
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)

		s.mu.Lock()
		s.finished = true
		close(s.events)
		s.mu.Unlock()
	})
}
