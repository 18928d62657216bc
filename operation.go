package graphqllink

import (
	"errors"
	"maps"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"go.trai.ch/zerr"
)

// OperationKind is the declared type of a GraphQL operation.
type OperationKind string

const (
	OperationQuery        OperationKind = ast.OperationTypeQuery
	OperationMutation     OperationKind = ast.OperationTypeMutation
	OperationSubscription OperationKind = ast.OperationTypeSubscription
)

// Request is what a caller submits: a document, its variables and, for documents
// holding several operations, the name of the one to run.
type Request struct {
	Query         string
	Variables     map[string]interface{}
	OperationName string
}

// Operation is a parsed Request. It is immutable once returned by ParseOperation.
type Operation struct {
	query         string
	variables     map[string]interface{}
	operationName string
	kind          OperationKind
	name          string
}

// ParseOperation parses req.Query and locates its main definition: the operation
// named req.OperationName when set, the first operation definition otherwise.
func ParseOperation(req Request) (*Operation, error) {
	doc, err := parser.Parse(parser.ParseParams{Source: req.Query})
	if err != nil {
		return nil, errors.Join(ErrUnclassifiable, zerr.Wrap(err, "failed to parse document"))
	}

	def := mainDefinition(doc, req.OperationName)
	if def == nil {
		if req.OperationName != "" {
			return nil, errors.Join(ErrUnclassifiable,
				zerr.With(zerr.New("no operation with the requested name"), "operation_name", req.OperationName))
		}
		return nil, errors.Join(ErrUnclassifiable, zerr.New("document contains no operation definition"))
	}

	kind := OperationKind(def.Operation)
	switch kind {
	case OperationQuery, OperationMutation, OperationSubscription:
	default:
		return nil, errors.Join(ErrUnclassifiable,
			zerr.With(zerr.New("unknown operation type"), "operation_type", def.Operation))
	}

	op := &Operation{
		query:         req.Query,
		variables:     maps.Clone(req.Variables),
		operationName: req.OperationName,
		kind:          kind,
	}
	if def.Name != nil {
		op.name = def.Name.Value
	}
	return op, nil
}

func mainDefinition(doc *ast.Document, operationName string) *ast.OperationDefinition {
	for _, node := range doc.Definitions {
		def, ok := node.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName == "" {
			return def
		}
		if def.Name != nil && def.Name.Value == operationName {
			return def
		}
	}
	return nil
}

func (op *Operation) Kind() OperationKind { return op.kind }

// Name is the name given to the main definition in the document, empty for
// anonymous operations.
func (op *Operation) Name() string { return op.name }

func (op *Operation) Query() string { return op.query }

func (op *Operation) OperationName() string { return op.operationName }

// Variables returns a copy of the operation variables.
func (op *Operation) Variables() map[string]interface{} { return maps.Clone(op.variables) }

// payload is the GraphQL-over-HTTP request body, also used as the payload of a
// websocket start message.
type payload struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

func (op *Operation) payload() payload {
	return payload{
		Query:         op.query,
		Variables:     op.variables,
		OperationName: op.operationName,
	}
}

// Route names the transport an operation is dispatched to.
type Route int

const (
	// RouteRequestResponse sends the operation over HTTP and yields one result.
	RouteRequestResponse Route = iota
	// RouteSubscription registers the operation on the shared websocket and yields a stream.
	RouteSubscription
)

func (r Route) String() string {
	switch r {
	case RouteRequestResponse:
		return "request-response"
	case RouteSubscription:
		return "subscription"
	default:
		return "unknown"
	}
}

// Classify picks the transport for op. It depends on nothing but the operation kind.
func Classify(op *Operation) Route {
	if op.kind == OperationSubscription {
		return RouteSubscription
	}
	return RouteRequestResponse
}
