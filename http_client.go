package graphqllink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"go.trai.ch/zerr"
	"go.uber.org/zap"
)

type HTTPTransportConfig struct {
	Endpoint string
	// Client defaults to a fresh http.Client.
	Client *http.Client
	Header http.Header
	Logger *zap.Logger
	Store  ResultSink
}

// HTTPTransport carries queries and mutations: one POST per operation, one
// result per call. Failed calls are never retried.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
	store    ResultSink

	mu     sync.RWMutex
	header http.Header
}

func NewHTTPTransport(cfg HTTPTransportConfig) *HTTPTransport {
	t := &HTTPTransport{
		endpoint: cfg.Endpoint,
		client:   cfg.Client,
		logger:   cfg.Logger,
		store:    cfg.Store,
		header:   cfg.Header.Clone(),
	}
	if t.client == nil {
		t.client = &http.Client{}
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.header == nil {
		t.header = http.Header{}
	}
	return t
}

// SetHeader sets a header sent with every subsequent request.
func (t *HTTPTransport) SetHeader(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.header.Set(key, value)
}

// Execute posts op to the endpoint. A result carrying GraphQL errors is
// returned together with a *ResponseError so partial data stays reachable.
func (t *HTTPTransport) Execute(ctx context.Context, op *Operation) (*Response, error) {
	requestBody, err := json.Marshal(op.payload())
	if err != nil {
		return nil, zerr.Wrap(err, "failed to marshal request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	t.mu.RLock()
	for key, values := range t.header {
		req.Header[key] = append([]string(nil), values...)
	}
	t.mu.RUnlock()

	t.logger.Debug("executing operation",
		zap.String("endpoint", t.endpoint),
		zap.String("kind", string(op.Kind())),
		zap.String("operation", op.Name()))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrTransport, zerr.Wrap(err, "failed to execute request"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrTransport, zerr.Wrap(err, "failed to read response body"))
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode >= http.StatusMultipleChoices {
			return nil, errors.Join(ErrTransport,
				zerr.With(zerr.New("unexpected response status"), "status", resp.StatusCode))
		}
		return nil, errors.Join(ErrTransport, zerr.Wrap(err, "failed to unmarshal response body"))
	}

	if len(result.Errors) > 0 {
		t.logger.Debug("operation returned errors",
			zap.String("operation", op.Name()),
			zap.Int("count", len(result.Errors)))
		return &result, &ResponseError{Errors: result.Errors}
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Join(ErrTransport,
			zerr.With(zerr.New("unexpected response status"), "status", resp.StatusCode))
	}

	if t.store != nil {
		if err := t.store.Write(op, &result); err != nil {
			t.logger.Warn("failed to store result", zap.String("operation", op.Name()), zap.Error(err))
		}
	}
	return &result, nil
}
