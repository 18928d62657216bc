package graphqllink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.trai.ch/zerr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Subprotocol spoken on the subscription connection.
const Subprotocol = "graphql-ws"

const (
	defaultReconnectInterval = 2 * time.Second
	writeWait                = 10 * time.Second
	dialTimeout              = 30 * time.Second
)

// Message types of the graphql-ws protocol.
const (
	msgConnectionInit      = "connection_init"
	msgConnectionAck       = "connection_ack"
	msgConnectionError     = "connection_error"
	msgConnectionKeepAlive = "ka"
	msgKeepAliveLong       = "connection_keep_alive"
	msgConnectionTerminate = "connection_terminate"
	msgStart               = "start"
	msgData                = "data"
	msgError               = "error"
	msgComplete            = "complete"
	msgStop                = "stop"
)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outMessage struct {
	ID      string      `json:"id,omitempty"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type WebSocketTransportConfig struct {
	Endpoint string
	Header   http.Header
	// InitPayload is sent with connection_init.
	InitPayload map[string]interface{}
	// Reconnect re-establishes the connection after an unplanned disconnect and
	// restarts every active subscription under its existing id.
	Reconnect bool
	// ReconnectInterval is the minimum delay between dial attempts.
	ReconnectInterval time.Duration
	// MaxReconnectAttempts bounds attempts per disconnect; zero means no bound.
	MaxReconnectAttempts int
	Dialer               *websocket.Dialer
	Logger               *zap.Logger
	Store                ResultSink
}

// WebSocketTransport multiplexes subscriptions over one shared connection.
// The connection is opened by the first Subscribe and terminated when the last
// subscription goes away.
type WebSocketTransport struct {
	endpoint     string
	dialer       *websocket.Dialer
	initPayload  map[string]interface{}
	reconnect    bool
	maxAttempts  int
	limiter      *rate.Limiter
	logger       *zap.Logger
	store        ResultSink
	counter      atomic.Int64
	connectGroup singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards the fields below. When both are needed, mu is taken before writeMu.
	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[string]*Subscription
	header  http.Header
	closed  bool
	writeMu sync.Mutex
}

func NewWebSocketTransport(cfg WebSocketTransportConfig) *WebSocketTransport {
	interval := cfg.ReconnectInterval
	if interval <= 0 {
		interval = defaultReconnectInterval
	}
	dialer := *websocket.DefaultDialer
	if cfg.Dialer != nil {
		dialer = *cfg.Dialer
	}
	dialer.Subprotocols = []string{Subprotocol}

	ctx, cancel := context.WithCancel(context.Background())
	t := &WebSocketTransport{
		endpoint:    cfg.Endpoint,
		dialer:      &dialer,
		initPayload: cfg.InitPayload,
		reconnect:   cfg.Reconnect,
		maxAttempts: cfg.MaxReconnectAttempts,
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
		logger:      cfg.Logger,
		store:       cfg.Store,
		ctx:         ctx,
		cancel:      cancel,
		subs:        make(map[string]*Subscription),
		header:      cfg.Header.Clone(),
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.header == nil {
		t.header = http.Header{}
	}
	return t
}

// SetHeader sets a header sent with the next websocket handshake.
func (t *WebSocketTransport) SetHeader(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.header.Set(key, value)
}

func (t *WebSocketTransport) generateUniqueID() string {
	return strconv.FormatInt(t.counter.Add(1), 10)
}

// Subscribe registers op on the shared connection, opening it when needed.
// The subscription ends when ctx is done, when Close is called on it, or when
// the server completes or fails it.
func (t *WebSocketTransport) Subscribe(ctx context.Context, op *Operation) (*Subscription, error) {
	sub := newSubscription(t, t.generateUniqueID(), op)
	start := outMessage{ID: sub.id, Type: msgStart, Payload: op.payload()}

	for {
		conn, err := t.connect(ctx)
		if err != nil {
			return nil, err
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return nil, ErrClosed
		}
		if t.conn != conn {
			// terminated or replaced between connect and registration
			t.mu.Unlock()
			continue
		}
		t.subs[sub.id] = sub
		sub.conn = conn
		err = t.send(conn, start)
		if err != nil {
			delete(t.subs, sub.id)
		}
		t.mu.Unlock()

		if err != nil {
			return nil, errors.Join(ErrTransport, zerr.Wrap(err, "failed to send start message"))
		}
		break
	}

	t.logger.Debug("subscription started",
		zap.String("id", sub.id),
		zap.String("operation", op.Name()))

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// connect returns the live connection, dialing it if there is none. Concurrent
// callers share a single dial.
func (t *WebSocketTransport) connect(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if t.conn != nil {
		conn := t.conn
		t.mu.Unlock()
		return conn, nil
	}
	t.mu.Unlock()

	// The dial belongs to the transport, not to whichever caller started it, so
	// a caller giving up leaves it running for the others.
	ch := t.connectGroup.DoChan("connect", func() (interface{}, error) {
		return t.openWebSocket()
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*websocket.Conn), nil
	case <-ctx.Done():
		return nil, errors.Join(ErrTransport, ctx.Err())
	}
}

func (t *WebSocketTransport) openWebSocket() (*websocket.Conn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if t.conn != nil {
		conn := t.conn
		t.mu.Unlock()
		return conn, nil
	}
	header := t.header.Clone()
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(t.ctx, dialTimeout)
	defer cancel()

	t.logger.Info("connecting to websocket endpoint", zap.String("endpoint", t.endpoint))
	conn, resp, err := t.dialer.DialContext(ctx, t.endpoint, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			t.logger.Warn("websocket handshake failed",
				zap.String("status", resp.Status),
				zap.ByteString("body", body))
		} else {
			t.logger.Warn("websocket dial failed", zap.Error(err))
		}
		return nil, errors.Join(ErrTransport, zerr.With(zerr.Wrap(err, "failed to dial websocket"), "endpoint", t.endpoint))
	}

	initMessage := outMessage{Type: msgConnectionInit}
	if len(t.initPayload) > 0 {
		initMessage.Payload = t.initPayload
	}
	if err := t.send(conn, initMessage); err != nil {
		conn.Close()
		return nil, errors.Join(ErrTransport, zerr.Wrap(err, "failed to send init message"))
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	t.conn = conn
	t.wg.Add(1)
	t.mu.Unlock()

	go t.listen(conn)

	return conn, nil
}

func (t *WebSocketTransport) send(conn *websocket.Conn, msg outMessage) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func (t *WebSocketTransport) listen(conn *websocket.Conn) {
	defer t.wg.Done()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Info("websocket closed", zap.Error(err))
			} else {
				t.logger.Debug("websocket read failed", zap.Error(err))
			}
			t.handleDisconnect(conn, err)
			return
		}
		t.dispatch(msg)
	}
}

func (t *WebSocketTransport) dispatch(msg wsMessage) {
	switch msg.Type {
	case msgData:
		sub := t.lookup(msg.ID)
		if sub == nil {
			return
		}
		var resp Response
		if err := json.Unmarshal(msg.Payload, &resp); err != nil {
			t.logger.Warn("failed to decode data payload", zap.String("id", msg.ID), zap.Error(err))
			return
		}
		if t.store != nil && len(resp.Errors) == 0 {
			if err := t.store.Write(sub.op, &resp); err != nil {
				t.logger.Warn("failed to store result", zap.String("id", msg.ID), zap.Error(err))
			}
		}
		sub.deliver(&resp)

	case msgError:
		if sub := t.remove(msg.ID); sub != nil {
			sub.finish(parseErrorPayload(msg.Payload))
		}

	case msgComplete:
		t.logger.Debug("subscription completed", zap.String("id", msg.ID))
		if sub := t.remove(msg.ID); sub != nil {
			sub.finish(nil)
		}

	case msgConnectionAck:
		t.logger.Debug("websocket connection established")

	case msgConnectionError:
		t.logger.Warn("websocket connection error", zap.ByteString("payload", msg.Payload))

	case msgConnectionKeepAlive, msgKeepAliveLong:

	default:
		t.logger.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

func (t *WebSocketTransport) lookup(id string) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subs[id]
}

// remove deregisters a subscription the server has already ended and
// terminates the connection when it was the last one.
func (t *WebSocketTransport) remove(id string) *Subscription {
	t.mu.Lock()
	sub, ok := t.subs[id]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.subs, id)
	conn := t.releaseIfIdleLocked()
	t.mu.Unlock()

	if conn != nil {
		t.terminate(conn)
	}
	return sub
}

// unsubscribe deregisters a subscription on the client's initiative and asks
// the server to stop it.
func (t *WebSocketTransport) unsubscribe(id string) error {
	t.mu.Lock()
	if _, ok := t.subs[id]; !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.subs, id)
	conn := t.conn
	idle := t.releaseIfIdleLocked()
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	t.logger.Debug("unsubscribing", zap.String("id", id))
	err := t.send(conn, outMessage{ID: id, Type: msgStop})
	if idle != nil {
		t.terminate(idle)
	}
	if err != nil {
		return errors.Join(ErrTransport, zerr.Wrap(err, "failed to send stop message"))
	}
	return nil
}

// releaseIfIdleLocked detaches the connection when no subscription is left and
// returns it for termination.
func (t *WebSocketTransport) releaseIfIdleLocked() *websocket.Conn {
	if len(t.subs) > 0 || t.conn == nil {
		return nil
	}
	conn := t.conn
	t.conn = nil
	return conn
}

// Active reports the number of registered subscriptions.
func (t *WebSocketTransport) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
