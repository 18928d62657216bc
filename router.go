package graphqllink

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

//go:generate mockgen -source=router.go -destination=mocks/mock_router.go -package=mocks

const tracerName = "github.com/BenBurnett/graphqllink"

// RequestTransport answers one operation with one result.
type RequestTransport interface {
	Execute(ctx context.Context, op *Operation) (*Response, error)
}

// SubscriptionTransport answers one operation with a stream of results.
type SubscriptionTransport interface {
	Subscribe(ctx context.Context, op *Operation) (*Subscription, error)
}

// Result is what Submit hands back: Response for RouteRequestResponse,
// Subscription for RouteSubscription.
type Result struct {
	Route        Route
	Operation    *Operation
	Response     *Response
	Subscription *Subscription
}

type RouterOption func(*Router)

func WithRouterTracerProvider(tp trace.TracerProvider) RouterOption {
	return func(r *Router) {
		r.tracer = tp.Tracer(tracerName)
	}
}

func WithRouterLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// Router sends every operation to exactly one of its two transports. It keeps
// no routing state.
type Router struct {
	requests      RequestTransport
	subscriptions SubscriptionTransport
	tracer        trace.Tracer
	logger        *zap.Logger
}

func NewRouter(requests RequestTransport, subscriptions SubscriptionTransport, opts ...RouterOption) *Router {
	r := &Router{
		requests:      requests,
		subscriptions: subscriptions,
		tracer:        otel.GetTracerProvider().Tracer(tracerName),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit parses req and dispatches it.
func (r *Router) Submit(ctx context.Context, req Request) (*Result, error) {
	op, err := ParseOperation(req)
	if err != nil {
		return nil, err
	}
	return r.Dispatch(ctx, op)
}

// Dispatch forwards op to the transport chosen by Classify. Transport errors
// are returned as is; a Result carrying partial data may accompany them.
func (r *Router) Dispatch(ctx context.Context, op *Operation) (*Result, error) {
	route := Classify(op)

	ctx, span := r.tracer.Start(ctx, "graphql."+string(op.Kind()),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("graphql.operation.kind", string(op.Kind())),
			attribute.String("graphql.operation.name", op.Name()),
			attribute.String("graphql.route", route.String()),
		))
	defer span.End()

	r.logger.Debug("dispatching operation",
		zap.String("kind", string(op.Kind())),
		zap.String("operation", op.Name()),
		zap.Stringer("route", route))

	result := &Result{Route: route, Operation: op}
	var err error
	switch route {
	case RouteSubscription:
		result.Subscription, err = r.subscriptions.Subscribe(ctx, op)
	default:
		result.Response, err = r.requests.Execute(ctx, op)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if result.Response == nil && result.Subscription == nil {
			return nil, err
		}
		return result, err
	}
	return result, nil
}
