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

// Package graph runs a directed acyclic graph of tasks over a shared state.
//
// Nodes are functions from a state snapshot to a partial update. A Reducer
// folds each update into the shared state as nodes complete, in completion
// order, on a single coordinating goroutine; nodes themselves run concurrently
// and never see each other's in-flight work.
//
// A graph starts from a conditional entry: a Router inspects the initial state
// and names one or more entry nodes. Only nodes reachable from those entries
// take part in the run, so a join node never waits on a branch that was not
// routed.
//
// A node added with the Deferred option is held back until its predecessors
// are done and no other node is ready or running, which makes it a join over
// every branch active in the run:
//
//	g := graph.New(mergeState)
//	g.AddNode("search", search)
//	g.AddNode("vector", vector)
//	g.AddNode("answer", answer, graph.Deferred())
//	g.AddEdge("search", "answer")
//	g.AddEdge("vector", "answer")
//	g.SetConditionalEntry(route, "search", "vector")
//	runnable, err := g.Compile()
//
//	final, err := runnable.Invoke(ctx, initial)
//
// Stream yields every node's update as it completes. A failing node cancels
// the run and is reported as a *NodeError.
package graph
