package graphqllink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// ResultSink receives every successful result a transport produces.
type ResultSink interface {
	Write(op *Operation, resp *Response) error
}

// Store is an in-memory normalized result cache shared by both transports.
// Root results are kept per operation shape; objects carrying __typename and id
// are merged into a single entity table. Nothing is ever evicted.
type Store struct {
	mu       sync.RWMutex
	results  map[uint64]json.RawMessage
	entities map[string]map[string]interface{}
}

func NewStore() *Store {
	return &Store{
		results:  make(map[uint64]json.RawMessage),
		entities: make(map[string]map[string]interface{}),
	}
}

// StoreKey identifies an operation shape: document, operation name and variables.
// encoding/json sorts map keys, so equal variables always hash equally.
func StoreKey(op *Operation) (uint64, error) {
	vars, err := json.Marshal(op.variables)
	if err != nil {
		return 0, zerr.Wrap(err, "failed to encode variables")
	}
	d := xxhash.New()
	_, _ = d.WriteString(op.query)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(op.operationName)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(vars)
	return d.Sum64(), nil
}

func (s *Store) Write(op *Operation, resp *Response) error {
	if resp == nil || len(resp.Data) == 0 || bytes.Equal(resp.Data, []byte("null")) {
		return nil
	}
	key, err := StoreKey(op)
	if err != nil {
		return err
	}

	var tree interface{}
	if err := json.Unmarshal(resp.Data, &tree); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to decode result for normalization"), "operation", op.name)
	}

	data := make(json.RawMessage, len(resp.Data))
	copy(data, resp.Data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[key] = data
	s.normalize(tree)
	return nil
}

func (s *Store) normalize(node interface{}) {
	switch v := node.(type) {
	case map[string]interface{}:
		if ref, ok := entityKey(v); ok {
			entity, exists := s.entities[ref]
			if !exists {
				entity = make(map[string]interface{}, len(v))
				s.entities[ref] = entity
			}
			maps.Copy(entity, v)
		}
		for _, child := range v {
			s.normalize(child)
		}
	case []interface{}:
		for _, child := range v {
			s.normalize(child)
		}
	}
}

func entityKey(obj map[string]interface{}) (string, bool) {
	typename, ok := obj["__typename"].(string)
	if !ok || typename == "" {
		return "", false
	}
	switch id := obj["id"].(type) {
	case string:
		return typename + ":" + id, true
	case float64:
		return fmt.Sprintf("%s:%v", typename, id), true
	default:
		return "", false
	}
}

// Read returns the last result stored for an operation of the same shape as op.
func (s *Store) Read(op *Operation) (json.RawMessage, bool) {
	key, err := StoreKey(op)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.results[key]
	if !ok {
		return nil, false
	}
	out := make(json.RawMessage, len(data))
	copy(out, data)
	return out, true
}

// Entity returns the merged fields of the object identified by "Typename:id".
func (s *Store) Entity(ref string) (map[string]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity, ok := s.entities[ref]
	if !ok {
		return nil, false
	}
	return deepCopy(entity).(map[string]interface{}), true
}

// deepCopy copies the maps and slices of a decoded JSON tree so callers never
// share them with the store.
func deepCopy(node interface{}) interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, child := range v {
			out[key] = deepCopy(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, child := range v {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return v
	}
}
