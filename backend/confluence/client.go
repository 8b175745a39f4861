// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package confluence implements the search and fetch backends against a
// Confluence tool server speaking the Model Context Protocol.
package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/poiesic/ragflow/backend"
)

const (
	// SearchTool runs a CQL query and returns matching pages.
	SearchTool = "search_confluence_based_on_cql_query"
	// FetchTool returns the markdown body of a page.
	FetchTool = "get_page_by_id"
)

var version = "dev"

// ErrToolFailed is returned when the server reports a tool error.
var ErrToolFailed = errors.New("confluence tool failed")

// Client is a search and fetch backend backed by an MCP session.
// It is safe for concurrent use.
type Client struct {
	session *mcp.ClientSession
	baseURL string
	logger  *slog.Logger
}

var (
	_ backend.Searcher        = (*Client)(nil)
	_ backend.DocumentFetcher = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "confluence")
	}
}

// WithBaseURL makes relative page URLs returned by the server absolute.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// Dial connects to the tool server at endpoint. Endpoints ending in "/sse"
// use the SSE transport, all others the streamable HTTP transport.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	var transport mcp.Transport
	if strings.HasSuffix(strings.TrimSuffix(endpoint, "/"), "/sse") {
		transport = &mcp.SSEClientTransport{Endpoint: endpoint}
	} else {
		transport = &mcp.StreamableClientTransport{Endpoint: endpoint}
	}
	return Connect(ctx, transport, opts...)
}

// Connect opens an MCP session over transport.
func Connect(ctx context.Context, transport mcp.Transport, opts ...Option) (*Client, error) {
	c := &Client{logger: slog.Default().With("component", "confluence")}
	for _, opt := range opts {
		opt(c)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "ragflow", Version: version}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrBackendUnavailable, err)
	}
	c.session = session
	return c, nil
}

// Close ends the MCP session.
func (c *Client) Close() error {
	return c.session.Close()
}

type searchResponse struct {
	Results []struct {
		Content struct {
			ID    jsonString `json:"id"`
			Title string     `json:"title"`
		} `json:"content"`
		Title        string     `json:"title"`
		Excerpt      string     `json:"excerpt"`
		URL          string     `json:"url"`
		LastModified jsonString `json:"lastModified"`
		Score        float64    `json:"score"`
	} `json:"results"`
}

// Search runs one CQL query.
func (c *Client) Search(ctx context.Context, cql string) ([]backend.SearchHit, error) {
	text, err := c.callTool(ctx, SearchTool, map[string]any{"cql": cql})
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrMalformedResponse, err)
	}

	hits := make([]backend.SearchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		title := r.Content.Title
		if title == "" {
			title = r.Title
		}
		hits = append(hits, backend.SearchHit{
			ID:           string(r.Content.ID),
			Title:        title,
			Excerpt:      r.Excerpt,
			URL:          c.absoluteURL(r.URL),
			LastModified: string(r.LastModified),
			Score:        r.Score,
		})
	}
	c.logger.Debug("search complete", "cql", cql, "hits", len(hits))
	return hits, nil
}

// FetchDocument returns the markdown body of a page.
func (c *Client) FetchDocument(ctx context.Context, id, title string) (string, error) {
	args := map[string]any{"page_id": id}
	if title != "" {
		args["title"] = title
	}
	return c.callTool(ctx, FetchTool, args)
}

func (c *Client) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		c.logger.Error("tool call failed", "tool", name, "err", err)
		return "", fmt.Errorf("%w: %w", backend.ErrBackendUnavailable, err)
	}

	text := textContent(result)
	if result.IsError {
		return "", fmt.Errorf("%w: %s: %s", ErrToolFailed, name, text)
	}
	if text == "" && result.StructuredContent != nil {
		raw, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return "", fmt.Errorf("%w: %w", backend.ErrMalformedResponse, err)
		}
		text = string(raw)
	}
	return text, nil
}

func textContent(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func (c *Client) absoluteURL(u string) string {
	if c.baseURL == "" || u == "" || strings.Contains(u, "://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return c.baseURL + u
}

// jsonString accepts JSON strings and numbers.
type jsonString string

func (s *jsonString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = jsonString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = jsonString(n.String())
	return nil
}
