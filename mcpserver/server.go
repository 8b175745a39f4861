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

// Package mcpserver exposes the local document store over the Model Context
// Protocol. It serves the same search and fetch tools as the Confluence tool
// server, so a ragflow client can point at either, plus an answer tool that
// runs the full workflow.
package mcpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/poiesic/ragflow/backend/confluence"
)

// version is set by the linker at build time.
var version = "dev"

// AnswerTool runs the workflow for a question.
const AnswerTool = "answer_question"

// NewServer creates an MCP server with the tools of svc registered. The
// answer tool is only registered when svc has an answerer.
func NewServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "ragflow",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        confluence.SearchTool,
		Description: "Search pages using a Confluence Query Language (CQL) query. Supports text, title and siteSearch clauses with ~, =, !~, != and in, combined with AND, OR, NOT and parentheses. Returns up to 25 results with id, title, excerpt and url.",
	}, svc.Search)

	mcp.AddTool(server, &mcp.Tool{
		Name:        confluence.FetchTool,
		Description: "Retrieve the full content of a page by its id. The optional title is included in the output for context.",
	}, svc.Fetch)

	if svc.answerer != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        AnswerTool,
			Description: "Answer a question from the indexed pages. Returns the answer, the pages it is based on and token usage.",
		}, svc.Answer)
	}

	return server
}

// RunStdio serves svc over stdin and stdout until ctx is done or the client
// disconnects.
func RunStdio(ctx context.Context, svc *Service) error {
	return NewServer(svc).Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves svc over streamable HTTP on addr until ctx is done.
func RunHTTP(ctx context.Context, svc *Service, addr string) error {
	server := NewServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			svc.logger.Warn("http shutdown", "err", err)
		}
	}()

	svc.logger.Info("serving MCP over HTTP", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

