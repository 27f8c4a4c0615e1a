package pathstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", "secret")
	t.Cleanup(c.Close)
	return c
}

func TestPutNode(t *testing.T) {
	var gotPath string
	var gotBody NodeRequest
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &gotBody))
		w.WriteHeader(http.StatusCreated)
	})

	err := c.PutNode(context.Background(), "analyses/doc-1/meta", NodeRequest{
		Value:      map[string]any{"title": "Report"},
		MemoryType: "metacognitive",
		Salience:   0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "/kv/analyses/doc-1/meta", gotPath)
	assert.Equal(t, "metacognitive", gotBody.MemoryType)
	assert.Equal(t, map[string]any{"title": "Report"}, gotBody.Value)
}

func TestPutNode_ServerError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "disk full", http.StatusInternalServerError)
	})

	err := c.PutNode(context.Background(), "analyses/x/result", NodeRequest{Value: 1})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Contains(t, se.Error(), "disk full")
}

func TestGetNode(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/kv/analyses/missing/result" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"key_path":"analyses.doc-1.result","value":{"summary":"ok"},"salience":0.5}`))
	})

	node, err := c.GetNode(context.Background(), "analyses/doc-1/result")
	require.NoError(t, err)
	assert.Equal(t, "analyses.doc-1.result", node.Key)
	assert.JSONEq(t, `{"summary":"ok"}`, string(node.Value))
	assert.InDelta(t, 0.5, node.Salience, 1e-9)

	_, err = c.GetNode(context.Background(), "analyses/missing/result")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteNode(t *testing.T) {
	var gotQuery string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		gotQuery = r.URL.RawQuery
		if r.URL.Path == "/kv/analyses/gone" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteNode(context.Background(), "analyses/doc-1", true))
	assert.Equal(t, "children=true", gotQuery)
	require.NoError(t, c.DeleteNode(context.Background(), "analyses/gone", false))
	assert.Empty(t, gotQuery)
}

func TestListChildren(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kv/analyses/doc-1/*", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"nodes":[{"key_path":"analyses.doc-1.meta","value":{"title":"T"}},{"key_path":"analyses.doc-1.result","value":{}}]}`))
	})

	nodes, err := c.ListChildren(context.Background(), "analyses/doc-1", 10)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "analyses.doc-1.meta", nodes[0].Key)
	assert.JSONEq(t, `{"title":"T"}`, string(nodes[0].Value))
}
