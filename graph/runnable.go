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
	"iter"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// errStopped ends a run whose stream consumer stopped iterating.
var errStopped = errors.New("graph: stream stopped")

// Update describes one completed node.
type Update[S any] struct {
	// Step is the 1-based completion index of the node within the run.
	Step int
	// Node is the name of the node.
	Node string
	// Output is the partial update the node returned.
	Output S
	// State is the merged state after Output was applied.
	State S
}

// Runnable is a compiled graph. It is safe for concurrent use; every call to
// Invoke or Stream is an independent run.
type Runnable[S any] struct {
	reducer      Reducer[S]
	nodes        map[string]*node[S]
	order        []string
	successors   map[string][]string
	predecessors map[string][]string
	router       Router[S]
	targets      []string
	logger       *slog.Logger
}

type nodeResult[S any] struct {
	node   string
	update S
	err    error
}

// Invoke runs the graph to completion and returns the final state.
func (r *Runnable[S]) Invoke(ctx context.Context, initial S) (S, error) {
	return r.run(ctx, initial, nil)
}

// Stream runs the graph and yields an Update for every node as it completes.
// A failed run ends with a single non-nil error. Breaking out of the loop
// cancels the remaining nodes.
func (r *Runnable[S]) Stream(ctx context.Context, initial S) iter.Seq2[Update[S], error] {
	return func(yield func(Update[S], error) bool) {
		_, err := r.run(ctx, initial, func(u Update[S]) bool {
			return yield(u, nil)
		})
		if err != nil && !errors.Is(err, errStopped) {
			yield(Update[S]{}, err)
		}
	}
}

// Route returns the entry nodes the router selects for state.
func (r *Runnable[S]) Route(state S) ([]string, error) {
	selected := r.router(state)
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no entry selected", ErrInvalidRoute)
	}
	entries := make([]string, 0, len(selected))
	for _, name := range selected {
		if !slices.Contains(r.targets, name) {
			return nil, fmt.Errorf("%w: %q is not an entry target", ErrInvalidRoute, name)
		}
		if !slices.Contains(entries, name) {
			entries = append(entries, name)
		}
	}
	return entries, nil
}

// reachable returns the nodes reachable from entries, entries included.
func (r *Runnable[S]) reachable(entries []string) map[string]bool {
	active := make(map[string]bool, len(r.nodes))
	queue := slices.Clone(entries)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if active[name] {
			continue
		}
		active[name] = true
		queue = append(queue, r.successors[name]...)
	}
	return active
}

func (r *Runnable[S]) run(ctx context.Context, initial S, emit func(Update[S]) bool) (S, error) {
	entries, err := r.Route(initial)
	if err != nil {
		return initial, err
	}
	active := r.reachable(entries)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(runCtx)
	results := make(chan nodeResult[S], len(active))

	var (
		state        = initial
		started      = make(map[string]bool, len(active))
		completed    = make(map[string]bool, len(active))
		running      int
		runningEager int
		step         int
	)

	ready := func(name string) bool {
		if !active[name] || started[name] {
			return false
		}
		for _, p := range r.predecessors[name] {
			if active[p] && !completed[p] {
				return false
			}
		}
		return true
	}

	launch := func(n *node[S]) {
		started[n.name] = true
		running++
		if !n.deferred {
			runningEager++
		}
		snapshot := state
		eg.Go(func() error {
			update, err := r.call(egCtx, n, snapshot)
			results <- nodeResult[S]{node: n.name, update: update, err: err}
			return err
		})
	}

	finish := func(err error) (S, error) {
		cancel()
		_ = eg.Wait()
		return state, err
	}

	r.logger.Debug("run started", "entries", entries, "active", len(active))
	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		for _, name := range r.order {
			if n := r.nodes[name]; !n.deferred && ready(name) {
				launch(n)
			}
		}
		if runningEager == 0 {
			for _, name := range r.order {
				if n := r.nodes[name]; n.deferred && ready(name) {
					launch(n)
				}
			}
		}
		if running == 0 {
			break
		}

		res := <-results
		running--
		if !r.nodes[res.node].deferred {
			runningEager--
		}
		if res.err != nil {
			r.logger.Error("node failed", "node", res.node, "err", res.err)
			return finish(&NodeError{Node: res.node, Err: res.err})
		}

		completed[res.node] = true
		state = r.reducer(state, res.update)
		step++
		if emit != nil && !emit(Update[S]{Step: step, Node: res.node, Output: res.update, State: state}) {
			return finish(errStopped)
		}
	}

	if err := eg.Wait(); err != nil {
		return state, err
	}
	r.logger.Debug("run complete", "steps", step)
	return state, nil
}

func (r *Runnable[S]) call(ctx context.Context, n *node[S], snapshot S) (update S, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	start := time.Now()
	r.logger.Debug("node started", "node", n.name)
	update, err = n.fn(ctx, snapshot)
	r.logger.Debug("node finished", "node", n.name, "elapsed", time.Since(start), "err", err)
	return update, err
}
