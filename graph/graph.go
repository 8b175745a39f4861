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

package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// NodeFunc computes a partial state update from a snapshot of the state.
// The snapshot must be treated as read-only.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Reducer merges a node's update into the current state and returns the
// result. It must not modify either argument: earlier states are still held
// by running nodes. It is only ever called from one goroutine at a time.
type Reducer[S any] func(current, update S) S

// Router selects the entry nodes of a run from the initial state. It must be
// a pure function of its argument.
type Router[S any] func(state S) []string

type node[S any] struct {
	name     string
	fn       NodeFunc[S]
	deferred bool
}

// NodeOption configures a node.
type NodeOption func(*nodeOptions)

type nodeOptions struct {
	deferred bool
}

// Deferred holds a node back until its predecessors have completed and no
// other node is ready or running.
func Deferred() NodeOption {
	return func(o *nodeOptions) {
		o.deferred = true
	}
}

// Option configures a Graph.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// Graph is a builder for a Runnable. It is not safe for concurrent use.
type Graph[S any] struct {
	reducer Reducer[S]
	nodes   map[string]*node[S]
	order   []string
	edges   [][2]string
	router  Router[S]
	targets []string
	errs    []error
	config  config
}

// New creates an empty graph whose node updates are merged with reducer.
func New[S any](reducer Reducer[S], opts ...Option) *Graph[S] {
	g := &Graph[S]{
		reducer: reducer,
		nodes:   make(map[string]*node[S]),
		config:  config{logger: slog.Default()},
	}
	for _, opt := range opts {
		opt(&g.config)
	}
	return g
}

// AddNode declares a node. Declaration errors are reported by Compile.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S], opts ...NodeOption) *Graph[S] {
	if name == "" || fn == nil {
		g.errs = append(g.errs, fmt.Errorf("%w: %q", ErrInvalidNode, name))
		return g
	}
	if _, dup := g.nodes[name]; dup {
		g.errs = append(g.errs, fmt.Errorf("%w: %q", ErrDuplicateNode, name))
		return g
	}

	var o nodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	g.nodes[name] = &node[S]{name: name, fn: fn, deferred: o.deferred}
	g.order = append(g.order, name)
	return g
}

// AddEdge makes to depend on from.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.edges = append(g.edges, [2]string{from, to})
	return g
}

// SetConditionalEntry sets the router that picks the entry nodes of each run.
// targets lists every node the router may return.
func (g *Graph[S]) SetConditionalEntry(router Router[S], targets ...string) *Graph[S] {
	g.router = router
	g.targets = slices.Clone(targets)
	return g
}

// Compile validates the graph and returns a runnable form of it.
func (g *Graph[S]) Compile() (*Runnable[S], error) {
	errs := slices.Clone(g.errs)
	if g.reducer == nil {
		errs = append(errs, ErrNilReducer)
	}
	if g.router == nil || len(g.targets) == 0 {
		errs = append(errs, ErrNoEntry)
	}
	for _, target := range g.targets {
		if _, ok := g.nodes[target]; !ok {
			errs = append(errs, fmt.Errorf("%w: entry target %q", ErrUnknownNode, target))
		}
	}

	successors := make(map[string][]string, len(g.nodes))
	predecessors := make(map[string][]string, len(g.nodes))
	for _, e := range g.edges {
		from, to := e[0], e[1]
		_, okFrom := g.nodes[from]
		_, okTo := g.nodes[to]
		if !okFrom || !okTo {
			errs = append(errs, fmt.Errorf("%w: edge %q -> %q", ErrUnknownNode, from, to))
			continue
		}
		if slices.Contains(successors[from], to) {
			continue
		}
		successors[from] = append(successors[from], to)
		predecessors[to] = append(predecessors[to], from)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cycle := findCycle(g.order, successors); cycle != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, cycle)
	}

	nodes := make(map[string]*node[S], len(g.nodes))
	for name, n := range g.nodes {
		copied := *n
		nodes[name] = &copied
	}

	return &Runnable[S]{
		reducer:      g.reducer,
		nodes:        nodes,
		order:        slices.Clone(g.order),
		successors:   successors,
		predecessors: predecessors,
		router:       g.router,
		targets:      slices.Clone(g.targets),
		logger:       g.config.logger.With("component", "graph"),
	}, nil
}

// findCycle returns the nodes of a cycle, or nil when the graph is acyclic.
func findCycle(order []string, successors map[string][]string) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(order))
	var stack []string

	var visit func(string) []string
	visit = func(n string) []string {
		state[n] = visiting
		stack = append(stack, n)
		for _, next := range successors[n] {
			switch state[next] {
			case visiting:
				start := slices.Index(stack, next)
				return append(slices.Clone(stack[start:]), next)
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
		return nil
	}

	for _, n := range order {
		if state[n] == unvisited {
			if cycle := visit(n); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
