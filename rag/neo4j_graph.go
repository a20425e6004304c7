package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/knowflow/internal/httputil"
	"github.com/BaSui01/knowflow/types"
)

// Neo4jGraphConfig Neo4j 图适配器配置。
type Neo4jGraphConfig struct {
	BaseURL  string `json:"base_url"`
	Database string `json:"database,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// ResultLimit 单实体邻域查询的 Cypher LIMIT
	ResultLimit int `json:"result_limit,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`
}

// Neo4jGraphStore 基于 Neo4j HTTP 事务端点的图适配器。
// 使用一次性提交事务（/tx/commit），不维护长事务状态。
type Neo4jGraphStore struct {
	cfg    Neo4jGraphConfig
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewNeo4jGraphStore 创建 Neo4j 图适配器。
func NewNeo4jGraphStore(cfg Neo4jGraphConfig, logger *zap.Logger) *Neo4jGraphStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 100
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Neo4jGraphStore{
		cfg:    cfg,
		url:    fmt.Sprintf("%s/db/%s/tx/commit", base, cfg.Database),
		client: httputil.NewClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "neo4j_graph")),
	}
}

// neo4j HTTP 事务协议的请求与响应结构
type neo4jStatement struct {
	Statement          string         `json:"statement"`
	Parameters         map[string]any `json:"parameters,omitempty"`
	ResultDataContents []string       `json:"resultDataContents,omitempty"`
}

type neo4jResponse struct {
	Results []struct {
		Data []struct {
			Graph struct {
				Nodes []struct {
					ID         string         `json:"id"`
					Labels     []string       `json:"labels"`
					Properties map[string]any `json:"properties"`
				} `json:"nodes"`
				Relationships []struct {
					ID        string         `json:"id"`
					Type      string         `json:"type"`
					StartNode string         `json:"startNode"`
					EndNode   string         `json:"endNode"`
					Props     map[string]any `json:"properties"`
				} `json:"relationships"`
			} `json:"graph"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Neighbors 查询实体的多跳邻域子图。
// 跳数是模式的一部分，无法参数化，经校验后内插到 Cypher 中。
func (s *Neo4jGraphStore) Neighbors(ctx context.Context, entityName string, hopLimit int) (GraphNeighborhood, error) {
	empty := GraphNeighborhood{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	if strings.TrimSpace(entityName) == "" {
		return empty, nil
	}
	if hopLimit <= 0 {
		hopLimit = 2
	}

	cypher := fmt.Sprintf("MATCH (n {name: $name})-[r*1..%d]-(m) RETURN n, r, m LIMIT $limit", hopLimit)
	payload := map[string]any{
		"statements": []neo4jStatement{{
			Statement: cypher,
			Parameters: map[string]any{
				"name":  entityName,
				"limit": s.cfg.ResultLimit,
			},
			ResultDataContents: []string{"graph"},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return empty, types.NewError(types.ErrInvalidRequest, "marshal cypher request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return empty, types.NewError(types.ErrInvalidRequest, "create cypher request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.cfg.Username != "" {
		req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	}

	resp, err := httputil.DoWithRetry(ctx, s.client, req, body, httputil.DefaultRetryPolicy())
	if err != nil {
		return empty, types.NewError(types.ErrSourceUnavailable, "neo4j request failed").
			WithSource(string(SourceGraph)).WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, types.NewError(types.ErrUpstreamError, "read neo4j response").
			WithSource(string(SourceGraph)).WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return empty, types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("neo4j request failed: status=%d body=%s", resp.StatusCode, string(respBody))).
			WithSource(string(SourceGraph)).WithRetryable(resp.StatusCode >= 500)
	}

	var decoded neo4jResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return empty, types.NewError(types.ErrUpstreamError, "decode neo4j response").
			WithSource(string(SourceGraph)).WithCause(err)
	}
	if len(decoded.Errors) > 0 {
		first := decoded.Errors[0]
		return empty, types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("neo4j error: %s %s", first.Code, first.Message)).
			WithSource(string(SourceGraph))
	}

	neighborhood := s.parseGraph(decoded)
	s.logger.Debug("图邻域查询完成",
		zap.String("entity", entityName),
		zap.Int("nodes", len(neighborhood.Nodes)),
		zap.Int("edges", len(neighborhood.Edges)))
	return neighborhood, nil
}

// parseGraph 解析 graph 格式的响应：节点与边按元素 ID 去重，
// 边的端点名称通过节点表反查。
func (s *Neo4jGraphStore) parseGraph(decoded neo4jResponse) GraphNeighborhood {
	nodes := []GraphNode{}
	edges := []GraphEdge{}
	seenNodes := make(map[string]bool)
	seenEdges := make(map[string]bool)
	names := make(map[string]string)

	for _, result := range decoded.Results {
		for _, row := range result.Data {
			for _, node := range row.Graph.Nodes {
				name, _ := node.Properties["name"].(string)
				names[node.ID] = name
				if seenNodes[node.ID] {
					continue
				}
				seenNodes[node.ID] = true
				nodes = append(nodes, GraphNode{
					ID:         node.ID,
					Name:       name,
					Properties: node.Properties,
				})
			}
		}
	}

	for _, result := range decoded.Results {
		for _, row := range result.Data {
			for _, rel := range row.Graph.Relationships {
				if seenEdges[rel.ID] {
					continue
				}
				seenEdges[rel.ID] = true
				edges = append(edges, GraphEdge{
					ID:         rel.ID,
					Type:       rel.Type,
					SourceID:   rel.StartNode,
					TargetID:   rel.EndNode,
					SourceName: names[rel.StartNode],
					TargetName: names[rel.EndNode],
				})
			}
		}
	}

	return GraphNeighborhood{Nodes: nodes, Edges: edges}
}
