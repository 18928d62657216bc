package graphqllink

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/zerr"
	"go.uber.org/zap"
)

// Client owns both transports, the router between them and the result store.
// Construct one with NewClient at startup and Close it at shutdown.
type Client struct {
	http   *HTTPTransport
	ws     *WebSocketTransport
	router *Router
	store  *Store
	logger *zap.Logger

	httpClient     *http.Client
	tracerProvider trace.TracerProvider
	header         http.Header
}

type ClientOption func(*Client)

// WithHTTPClient replaces the client used for queries and mutations. Config.Timeout
// is not applied to it.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(client *Client) {
		client.tracerProvider = tp
	}
}

// WithHeader adds a header to every HTTP request and websocket handshake.
func WithHeader(key, value string) ClientOption {
	return func(client *Client) {
		client.header.Set(key, value)
	}
}

func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := &Client{
		store:          NewStore(),
		logger:         zap.NewNop(),
		tracerProvider: otel.GetTracerProvider(),
		header:         http.Header{},
	}
	for key, value := range cfg.Headers {
		client.header.Set(key, value)
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client.http = NewHTTPTransport(HTTPTransportConfig{
		Endpoint: cfg.HTTPEndpoint,
		Client:   client.httpClient,
		Header:   client.header,
		Logger:   client.logger.Named("http"),
		Store:    client.store,
	})
	client.ws = NewWebSocketTransport(WebSocketTransportConfig{
		Endpoint:             cfg.WebSocketEndpoint,
		Header:               client.header,
		Reconnect:            cfg.Reconnect,
		ReconnectInterval:    cfg.ReconnectInterval,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		Logger:               client.logger.Named("websocket"),
		Store:                client.store,
	})
	client.router = NewRouter(client.http, client.ws,
		WithRouterTracerProvider(client.tracerProvider),
		WithRouterLogger(client.logger.Named("router")))

	return client, nil
}

// SetHeader sets a header on both transports. The websocket picks it up on its
// next handshake.
func (client *Client) SetHeader(key, value string) {
	client.http.SetHeader(key, value)
	client.ws.SetHeader(key, value)
}

// Submit routes req to the transport matching its kind.
func (client *Client) Submit(ctx context.Context, req Request) (*Result, error) {
	return client.router.Submit(ctx, req)
}

// Execute runs a query or mutation and decodes its data into target.
// Subscriptions are rejected with ErrWrongRoute.
func (client *Client) Execute(ctx context.Context, operation string, variables map[string]interface{}, target interface{}) error {
	op, err := ParseOperation(Request{Query: operation, Variables: variables})
	if err != nil {
		return err
	}
	if route := Classify(op); route != RouteRequestResponse {
		return errors.Join(ErrWrongRoute, zerr.With(zerr.New("use Subscribe"), "kind", string(op.Kind())))
	}

	result, err := client.router.Dispatch(ctx, op)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	return result.Response.Decode(target)
}

// Subscribe starts a subscription. The stream lives until ctx is done, the
// subscription is closed, or the server ends it.
func (client *Client) Subscribe(ctx context.Context, operation string, variables map[string]interface{}) (*Subscription, error) {
	op, err := ParseOperation(Request{Query: operation, Variables: variables})
	if err != nil {
		return nil, err
	}
	if route := Classify(op); route != RouteSubscription {
		return nil, errors.Join(ErrWrongRoute, zerr.With(zerr.New("use Execute"), "kind", string(op.Kind())))
	}

	result, err := client.router.Dispatch(ctx, op)
	if err != nil {
		return nil, err
	}
	return result.Subscription, nil
}

// Store returns the result cache shared by both transports.
func (client *Client) Store() *Store {
	return client.store
}

// Close ends every subscription and the shared connection.
func (client *Client) Close() error {
	return client.ws.Close()
}
