package graphqllink

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.trai.ch/zerr"
)

// Response is one GraphQL result, either the reply to an HTTP request or one
// event of a subscription.
type Response struct {
	Data       json.RawMessage        `json:"data,omitempty"`
	Errors     []GraphQLError         `json:"errors,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Decode unmarshals the data member into target.
func (r *Response) Decode(target interface{}) error {
	if len(r.Data) == 0 || bytes.Equal(r.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(r.Data, target); err != nil {
		return zerr.Wrap(err, "failed to decode response data")
	}
	return nil
}

type GraphQLError struct {
	Message    string                 `json:"message"`
	Locations  []Location             `json:"locations,omitempty"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ResponseError carries the errors member of a GraphQL result.
type ResponseError struct {
	Errors []GraphQLError
}

func (e *ResponseError) Error() string {
	if len(e.Errors) == 0 {
		return "GraphQL error"
	}
	return fmt.Sprintf("GraphQL error: %v", e.Errors[0].Message)
}

// parseErrorPayload accepts both shapes servers use for a websocket error
// message: a list of errors or a single error object.
func parseErrorPayload(raw json.RawMessage) *ResponseError {
	var list []GraphQLError
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return &ResponseError{Errors: list}
	}
	var single GraphQLError
	if err := json.Unmarshal(raw, &single); err == nil && single.Message != "" {
		return &ResponseError{Errors: []GraphQLError{single}}
	}
	return &ResponseError{Errors: []GraphQLError{{Message: string(raw)}}}
}
