package graphqllink

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/require"
)

const (
	helloQuery   = `query Hello { hello }`
	errorQuery   = `query { errorQuery }`
	echoMutation = `mutation Echo($message: String!) { echo(message: $message) }`
	userQuery    = `query User($id: ID!) { user(id: $id) { __typename id name } }`
	messageSent  = `subscription OnMessage { messageSent }`
)

func newTestSchema(t *testing.T) graphql.Schema {
	t.Helper()

	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.ID},
			"name": &graphql.Field{Type: graphql.String},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name: "Query",
			Fields: graphql.Fields{
				"hello": &graphql.Field{
					Type: graphql.String,
					Resolve: func(graphql.ResolveParams) (interface{}, error) {
						return "world", nil
					},
				},
				"errorQuery": &graphql.Field{
					Type: graphql.String,
					Resolve: func(graphql.ResolveParams) (interface{}, error) {
						return nil, errors.New("something went wrong")
					},
				},
				"user": &graphql.Field{
					Type: userType,
					Args: graphql.FieldConfigArgument{
						"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					},
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						return map[string]interface{}{"id": p.Args["id"], "name": "Ada"}, nil
					},
				},
			},
		}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{
			Name: "Mutation",
			Fields: graphql.Fields{
				"echo": &graphql.Field{
					Type: graphql.String,
					Args: graphql.FieldConfigArgument{
						"message": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					},
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						return p.Args["message"], nil
					},
				},
			},
		}),
	})
	require.NoError(t, err)
	return schema
}

// graphQLServer executes requests against a real schema and counts them.
type graphQLServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests int
	headers  []http.Header
}

func newGraphQLServer(t *testing.T) *graphQLServer {
	t.Helper()
	schema := newTestSchema(t)
	s := &graphQLServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.headers = append(s.headers, r.Header.Clone())
		s.mu.Unlock()

		var body payload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  body.Query,
			VariableValues: body.Variables,
			OperationName:  body.OperationName,
			Context:        r.Context(),
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *graphQLServer) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *graphQLServer) LastHeader() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.headers) == 0 {
		return nil
	}
	return s.headers[len(s.headers)-1]
}

// wsServer speaks the server side of graphql-ws. onStart decides what each
// registered operation receives.
type wsServer struct {
	*httptest.Server
	onStart func(c *wsServerConn, id string)

	mu          sync.Mutex
	connections int
	starts      []string
	stops       []string
	terminated  int
	headers     []http.Header
	delay       time.Duration
}

type wsServerConn struct {
	index int
	mu    sync.Mutex
	conn  *websocket.Conn
}

func (c *wsServerConn) send(msg wsMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteJSON(msg)
}

func (c *wsServerConn) data(id, data string) {
	c.send(wsMessage{ID: id, Type: msgData, Payload: json.RawMessage(`{"data":` + data + `}`)})
}

func (c *wsServerConn) complete(id string) {
	c.send(wsMessage{ID: id, Type: msgComplete})
}

// drop closes the network connection without a close frame.
func (c *wsServerConn) drop() {
	_ = c.conn.Close()
}

func newWSServer(t *testing.T, onStart func(c *wsServerConn, id string)) *wsServer {
	t.Helper()
	s := &wsServer{onStart: onStart}
	upgrader := websocket.Upgrader{Subprotocols: []string{Subprotocol}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// counted before the handshake completes so callers observe it once dialing returns
		s.mu.Lock()
		s.connections++
		index := s.connections
		s.headers = append(s.headers, r.Header.Clone())
		delay := s.delay
		s.mu.Unlock()

		time.Sleep(delay)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		c := &wsServerConn{index: index, conn: conn}

		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case msgConnectionInit:
				c.send(wsMessage{Type: msgConnectionAck})
			case msgStart:
				s.mu.Lock()
				s.starts = append(s.starts, msg.ID)
				s.mu.Unlock()
				if s.onStart != nil {
					s.onStart(c, msg.ID)
				}
			case msgStop:
				s.mu.Lock()
				s.stops = append(s.stops, msg.ID)
				s.mu.Unlock()
			case msgConnectionTerminate:
				s.mu.Lock()
				s.terminated++
				s.mu.Unlock()
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) WSURL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

// slowHandshake delays every later upgrade by d.
func (s *wsServer) slowHandshake(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *wsServer) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

func (s *wsServer) Starts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.starts...)
}

func (s *wsServer) Stops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.stops...)
}

func (s *wsServer) Terminated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

func mustParse(t *testing.T, query string, variables map[string]interface{}) *Operation {
	t.Helper()
	op, err := ParseOperation(Request{Query: query, Variables: variables})
	require.NoError(t, err)
	return op
}

func receive(t *testing.T, sub *Subscription) *Response {
	t.Helper()
	select {
	case resp, ok := <-sub.Events():
		require.True(t, ok, "subscription ended: %v", sub.Err())
		return resp
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for subscription event")
		return nil
	}
}

func waitDone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for subscription to end")
	}
}
