package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/knowflow/types"
)

func neo4jGraphResponse() map[string]any {
	node := func(id, name string) map[string]any {
		return map[string]any{
			"id":         id,
			"labels":     []string{"Entity"},
			"properties": map[string]any{"name": name},
		}
	}
	rel := func(id, relType, start, end string) map[string]any {
		return map[string]any{
			"id":        id,
			"type":      relType,
			"startNode": start,
			"endNode":   end,
		}
	}
	return map[string]any{
		"results": []any{
			map[string]any{
				"data": []any{
					map[string]any{"graph": map[string]any{
						"nodes":         []any{node("1", "Paris"), node("2", "France")},
						"relationships": []any{rel("10", "CAPITAL_OF", "1", "2")},
					}},
					// 第二行包含重复元素,解析时按元素 ID 去重
					map[string]any{"graph": map[string]any{
						"nodes":         []any{node("1", "Paris"), node("3", "Europe")},
						"relationships": []any{rel("10", "CAPITAL_OF", "1", "2"), rel("11", "PART_OF", "2", "3")},
					}},
				},
			},
		},
		"errors": []any{},
	}
}

func TestNeo4jNeighbors(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/db/neo4j/tx/commit", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "neo4j", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(neo4jGraphResponse())
	}))
	defer srv.Close()

	s := NewNeo4jGraphStore(Neo4jGraphConfig{
		BaseURL:  srv.URL,
		Username: "neo4j",
		Password: "secret",
	}, zap.NewNop())

	got, err := s.Neighbors(context.Background(), "Paris", 2)
	require.NoError(t, err)

	statements := gotBody["statements"].([]any)
	require.Len(t, statements, 1)
	stmt := statements[0].(map[string]any)
	assert.Contains(t, stmt["statement"], "[r*1..2]")
	params := stmt["parameters"].(map[string]any)
	assert.Equal(t, "Paris", params["name"])
	assert.Equal(t, float64(100), params["limit"])

	require.Len(t, got.Nodes, 3)
	assert.Equal(t, "Paris", got.Nodes[0].Name)
	require.Len(t, got.Edges, 2)
	assert.Equal(t, "CAPITAL_OF", got.Edges[0].Type)
	assert.Equal(t, "Paris", got.Edges[0].SourceName)
	assert.Equal(t, "France", got.Edges[0].TargetName)
}

func TestNeo4jNeighborsEmptyEntity(t *testing.T) {
	t.Parallel()

	s := NewNeo4jGraphStore(Neo4jGraphConfig{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	got, err := s.Neighbors(context.Background(), "  ", 2)
	require.NoError(t, err)
	assert.Empty(t, got.Nodes)
	assert.Empty(t, got.Edges)
}

func TestNeo4jNeighborsUnknownEntity(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{map[string]any{"data": []any{}}},
			"errors":  []any{},
		})
	}))
	defer srv.Close()

	s := NewNeo4jGraphStore(Neo4jGraphConfig{BaseURL: srv.URL}, zap.NewNop())
	got, err := s.Neighbors(context.Background(), "Atlantis", 2)
	require.NoError(t, err)
	assert.Empty(t, got.Nodes)
	assert.Empty(t, got.Edges)
}

func TestNeo4jNeighborsCypherError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{},
			"errors": []any{map[string]any{
				"code":    "Neo.ClientError.Statement.SyntaxError",
				"message": "Invalid input",
			}},
		})
	}))
	defer srv.Close()

	s := NewNeo4jGraphStore(Neo4jGraphConfig{BaseURL: srv.URL}, zap.NewNop())
	_, err := s.Neighbors(context.Background(), "Paris", 2)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUpstreamError))
	assert.Contains(t, err.Error(), "SyntaxError")
}

func TestNeo4jNeighborsServerDown(t *testing.T) {
	t.Parallel()

	s := NewNeo4jGraphStore(Neo4jGraphConfig{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	_, err := s.Neighbors(context.Background(), "Paris", 2)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrSourceUnavailable))
}
