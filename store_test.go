package graphqllink

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreKeyIgnoresVariableOrder(t *testing.T) {
	a := mustParse(t, userQuery, map[string]interface{}{"id": "1", "extra": true})
	b := mustParse(t, userQuery, map[string]interface{}{"extra": true, "id": "1"})
	c := mustParse(t, userQuery, map[string]interface{}{"id": "2"})

	ka, err := StoreKey(a)
	require.NoError(t, err)
	kb, err := StoreKey(b)
	require.NoError(t, err)
	kc, err := StoreKey(c)
	require.NoError(t, err)

	assert.Equal(t, ka, kb)
	assert.NotEqual(t, ka, kc)
}

func TestStoreNormalizesEntities(t *testing.T) {
	store := NewStore()

	list := mustParse(t, `{ users { __typename id name } }`, nil)
	require.NoError(t, store.Write(list, &Response{Data: json.RawMessage(
		`{"users":[{"__typename":"User","id":"1","name":"Ada"},{"__typename":"User","id":2,"name":"Grace"}]}`)}))

	detail := mustParse(t, `{ user(id: "1") { __typename id email } }`, nil)
	require.NoError(t, store.Write(detail, &Response{Data: json.RawMessage(
		`{"user":{"__typename":"User","id":"1","email":"ada@example.com"}}`)}))

	ada, ok := store.Entity("User:1")
	require.True(t, ok)
	assert.Equal(t, "Ada", ada["name"])
	assert.Equal(t, "ada@example.com", ada["email"])

	grace, ok := store.Entity("User:2")
	require.True(t, ok)
	assert.Equal(t, "Grace", grace["name"])

	_, ok = store.Entity("User:3")
	assert.False(t, ok)
}

func TestStoreEntityIsACopy(t *testing.T) {
	store := NewStore()
	op := mustParse(t, `{ user(id: "1") { __typename id address { city } tags } }`, nil)
	require.NoError(t, store.Write(op, &Response{Data: json.RawMessage(
		`{"user":{"__typename":"User","id":"1","address":{"city":"London"},"tags":["a","b"]}}`)}))

	first, ok := store.Entity("User:1")
	require.True(t, ok)
	first["address"].(map[string]interface{})["city"] = "Paris"
	first["tags"].([]interface{})[0] = "z"
	first["name"] = "changed"

	second, ok := store.Entity("User:1")
	require.True(t, ok)
	assert.Equal(t, "London", second["address"].(map[string]interface{})["city"])
	assert.Equal(t, []interface{}{"a", "b"}, second["tags"])
	assert.NotContains(t, second, "name")
}

func TestStoreReadReturnsLatestResult(t *testing.T) {
	store := NewStore()
	op := mustParse(t, helloQuery, nil)

	_, ok := store.Read(op)
	assert.False(t, ok)

	require.NoError(t, store.Write(op, &Response{Data: json.RawMessage(`{"hello":"one"}`)}))
	require.NoError(t, store.Write(op, &Response{Data: json.RawMessage(`{"hello":"two"}`)}))

	data, ok := store.Read(op)
	require.True(t, ok)
	assert.JSONEq(t, `{"hello":"two"}`, string(data))
}

func TestStoreSkipsEmptyAndRejectsInvalidData(t *testing.T) {
	store := NewStore()
	op := mustParse(t, helloQuery, nil)

	require.NoError(t, store.Write(op, &Response{}))
	require.NoError(t, store.Write(op, &Response{Data: json.RawMessage(`null`)}))
	_, ok := store.Read(op)
	assert.False(t, ok)

	assert.Error(t, store.Write(op, &Response{Data: json.RawMessage(`{broken`)}))
}

func TestStoreConcurrentWriters(t *testing.T) {
	store := NewStore()
	op := mustParse(t, `{ counter { __typename id value } }`, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Write(op, &Response{Data: json.RawMessage(`{"counter":{"__typename":"Counter","id":"c","value":1}}`)})
			store.Read(op)
			store.Entity("Counter:c")
		}()
	}
	wg.Wait()

	counter, ok := store.Entity("Counter:c")
	require.True(t, ok)
	assert.EqualValues(t, 1, counter["value"])
}
