package graphqllink

import (
	"errors"

	"github.com/gorilla/websocket"
	"go.trai.ch/zerr"
	"go.uber.org/zap"
)

func (t *WebSocketTransport) handleDisconnect(conn *websocket.Conn, cause error) {
	t.mu.Lock()
	if t.conn != conn {
		// terminated on purpose or already replaced
		t.mu.Unlock()
		return
	}
	t.conn = nil
	idle := len(t.subs) == 0
	closed := t.closed
	t.mu.Unlock()

	conn.Close()
	if closed || idle {
		return
	}

	lost := errors.Join(ErrConnectionLost, zerr.Wrap(cause, "websocket read failed"))
	if !t.reconnect {
		t.failAll(lost)
		return
	}
	t.reconnectLoop(lost)
}

func (t *WebSocketTransport) reconnectLoop(lost error) {
	for attempt := 1; ; attempt++ {
		if t.Active() == 0 {
			return
		}
		if t.maxAttempts > 0 && attempt > t.maxAttempts {
			t.logger.Warn("giving up on reconnect", zap.Int("attempts", t.maxAttempts))
			t.failAll(lost)
			return
		}
		if err := t.limiter.Wait(t.ctx); err != nil {
			// transport closed
			return
		}

		t.logger.Info("attempting to reconnect", zap.Int("attempt", attempt))
		conn, err := t.connect(t.ctx)
		if errors.Is(err, ErrClosed) {
			return
		}
		if err != nil {
			t.logger.Warn("reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if err := t.resubscribeAll(conn); err != nil {
			t.logger.Warn("resubscribe failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return
	}
}

// resubscribeAll restarts every subscription not yet started on conn. When a
// start message cannot be written, conn is detached and closed and the error
// returned, so the caller dials again and restarts whatever is left.
func (t *WebSocketTransport) resubscribeAll(conn *websocket.Conn) error {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return nil
	}
	if idle := t.releaseIfIdleLocked(); idle != nil {
		// every subscription went away while reconnecting
		t.mu.Unlock()
		t.terminate(idle)
		return nil
	}
	for id, sub := range t.subs {
		if sub.conn == conn {
			continue
		}
		start := outMessage{ID: id, Type: msgStart, Payload: sub.op.payload()}
		if err := t.send(conn, start); err != nil {
			t.conn = nil
			t.mu.Unlock()
			conn.Close()
			return zerr.With(zerr.Wrap(err, "failed to resubscribe"), "id", id)
		}
		sub.conn = conn
	}
	count := len(t.subs)
	t.mu.Unlock()

	t.logger.Info("resubscribed", zap.Int("subscriptions", count))
	return nil
}

// failAll ends every registered subscription with err.
func (t *WebSocketTransport) failAll(err error) {
	t.mu.Lock()
	subs := t.subs
	t.subs = make(map[string]*Subscription)
	t.mu.Unlock()

	for _, sub := range subs {
		sub.finish(err)
	}
}

func (t *WebSocketTransport) terminate(conn *websocket.Conn) {
	if err := t.send(conn, outMessage{Type: msgConnectionTerminate}); err != nil {
		t.logger.Debug("failed to send terminate message", zap.Error(err))
	}
	if err := conn.Close(); err != nil {
		t.logger.Debug("failed to close websocket connection", zap.Error(err))
	}
	t.logger.Info("websocket connection closed")
}

// Close terminates the connection and ends every subscription with ErrClosed.
// The transport cannot be used afterwards.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	t.cancel()
	if conn != nil {
		t.terminate(conn)
	}
	t.failAll(ErrClosed)
	t.wg.Wait()
	return nil
}
