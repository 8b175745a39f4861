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

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/ragflow"
	"github.com/poiesic/ragflow/ingestion"
	"github.com/poiesic/ragflow/mcpserver"
	"github.com/poiesic/ragflow/reembed"
	"github.com/poiesic/ragflow/workflow"
	"github.com/urfave/cli/v2"
)

var errQuestionRequired = errors.New("a question is required")

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errQuestionRequired
	}

	cfg := configFrom(c)
	if c.Bool("no-vector") {
		cfg.Retrieval.DisableVector = true
	}
	if n := c.Int("max-rounds"); n > 0 {
		cfg.Retrieval.MaxRounds = n
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	trace := io.Discard
	if c.Bool("trace") {
		trace = c.App.ErrWriter
	}

	engine, err := newEngine(ctx, cfg, ragflow.WithMonitor(newTraceMonitor(trace)))
	if err != nil {
		return err
	}
	defer engine.Close()

	var final workflow.State
	for update, err := range engine.Stream(ctx, question) {
		if err != nil {
			return fmt.Errorf("answer failed: %w", err)
		}
		fmt.Fprintf(trace, "[%d] %s done\n", update.Step, update.Node)
		final = update.State
	}

	result := workflow.ResultFromState(final)
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(c.App.Writer, result)
	return nil
}

func printResult(w io.Writer, result *workflow.Result) {
	fmt.Fprintln(w, result.Answer)

	if len(result.Pages)+len(result.VectorCandidates) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for _, p := range result.Pages {
			fmt.Fprintf(w, "  - %s %s\n", p.Title, p.URL)
		}
		for _, v := range result.VectorCandidates {
			fmt.Fprintf(w, "  - %s (similarity %.2f)\n", v.Title, v.Score)
		}
	}

	if result.Degraded() {
		fmt.Fprintln(w)
		for _, node := range slices.Sorted(maps.Keys(result.BranchErrors)) {
			fmt.Fprintf(w, "warning: %s failed: %s\n", node, result.BranchErrors[node])
		}
	}

	fmt.Fprintf(w, "\nsession %s, %d tokens, $%.4f\n",
		result.SessionID, result.TotalUsage.TotalTokens, result.TotalUsage.Cost)
}

func ingestCommand(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" {
		return errors.New("a directory is required")
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	engine, err := newEngine(ctx, configFrom(c))
	if err != nil {
		return err
	}
	defer engine.Close()

	opts := []ingestion.Option{
		ingestion.WithBatchSize(c.Int("batch-size")),
		ingestion.WithPoolSize(c.Int("pool-size")),
	}
	if c.Bool("raw") {
		opts = append(opts, ingestion.WithRawContent())
	}
	pipeline, err := engine.NewIngestionPipeline(opts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	report, err := pipeline.IngestDir(ctx, dir)
	if report != nil {
		fmt.Fprintf(c.App.Writer, "stored %d, embedded %d, skipped %d\n",
			report.Stored, report.Embedded, report.Skipped)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		MissingOnly:    c.Bool("missing-only"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	cfg := configFrom(c)
	if cfg.DataDir == "" {
		return errors.New("reembedding needs a persistent store: set --data-dir")
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	engine, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.DataDir)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n\n", cfg.AI.EmbeddingModel)

	if _, err := engine.NewReembedder(reembedConfig, c.App.ErrWriter).Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg := configFrom(c)
	addr := c.String("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	engine, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	svc, err := engine.NewMCPService()
	if err != nil {
		return err
	}
	if addr == "" {
		return mcpserver.RunStdio(ctx, svc)
	}
	return mcpserver.RunHTTP(ctx, svc, addr)
}

