package graph

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testState struct {
	Route  []string
	Log    []string
	Values map[string]int
}

func merge(current, update testState) testState {
	out := testState{
		Route:  current.Route,
		Log:    append(slices.Clone(current.Log), update.Log...),
		Values: maps.Clone(current.Values),
	}
	if out.Values == nil {
		out.Values = make(map[string]int)
	}
	for k, v := range update.Values {
		if _, ok := out.Values[k]; !ok {
			out.Values[k] = v
		}
	}
	return out
}

func routeFromState(s testState) []string {
	return s.Route
}

// step returns a node that logs its name and records value under its name.
func step(name string, value int) NodeFunc[testState] {
	return func(ctx context.Context, _ testState) (testState, error) {
		return testState{Log: []string{name}, Values: map[string]int{name: value}}, nil
	}
}

func sleepy(name string, d time.Duration) NodeFunc[testState] {
	return func(ctx context.Context, _ testState) (testState, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return testState{}, ctx.Err()
		}
		return testState{Log: []string{name}, Values: map[string]int{name: 1}}, nil
	}
}

func compile(t *testing.T, g *Graph[testState]) *Runnable[testState] {
	t.Helper()
	r, err := g.Compile()
	require.NoError(t, err)
	return r
}

func TestLinearGraph(t *testing.T) {
	g := New(merge)
	g.AddNode("a", step("a", 1)).
		AddNode("b", step("b", 2)).
		AddNode("c", step("c", 3)).
		AddEdge("a", "b").
		AddEdge("b", "c").
		SetConditionalEntry(only("a"), "a")

	final, err := compile(t, g).Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, final.Log)
	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 3}, final.Values)
}

func TestNodesSeeMergedSnapshot(t *testing.T) {
	var seen map[string]int
	g := New(merge)
	g.AddNode("a", step("a", 1))
	g.AddNode("b", func(ctx context.Context, s testState) (testState, error) {
		seen = maps.Clone(s.Values)
		return testState{}, nil
	})
	g.AddEdge("a", "b")
	g.SetConditionalEntry(only("a"), "a")

	_, err := compile(t, g).Invoke(context.Background(), testState{Values: map[string]int{"init": 0}})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"init": 0, "a": 1}, seen)
}

func joinGraph(branchA, branchB NodeFunc[testState], join NodeFunc[testState]) *Graph[testState] {
	g := New(merge)
	g.AddNode("generate", step("generate", 1))
	g.AddNode("vector", branchB)
	g.AddNode("filter", branchA)
	g.AddNode("filter_vector", step("filter_vector", 1))
	g.AddNode("join", join, Deferred())
	g.AddEdge("generate", "filter")
	g.AddEdge("vector", "filter_vector")
	g.AddEdge("filter", "join")
	g.AddEdge("filter_vector", "join")
	g.SetConditionalEntry(routeFromState, "generate", "vector")
	return g
}

func TestDeferredJoinWaitsForSlowBranch(t *testing.T) {
	var joinInput testState
	join := func(ctx context.Context, s testState) (testState, error) {
		joinInput = s
		return testState{Log: []string{"join"}}, nil
	}
	r := compile(t, joinGraph(sleepy("filter", 200*time.Millisecond), step("vector", 1), join))

	final, err := r.Invoke(context.Background(), testState{Route: []string{"generate", "vector"}})
	require.NoError(t, err)

	assert.Equal(t, "join", final.Log[len(final.Log)-1])
	assert.Len(t, final.Log, 5)
	for _, name := range []string{"generate", "vector", "filter", "filter_vector"} {
		assert.Contains(t, joinInput.Values, name, "join must see the output of %s", name)
	}
}

func TestDeferredNodeWaitsForUnrelatedNodes(t *testing.T) {
	g := New(merge)
	g.AddNode("slow", sleepy("slow", 100*time.Millisecond))
	g.AddNode("late", step("late", 1), Deferred())
	g.SetConditionalEntry(func(testState) []string { return []string{"slow", "late"} }, "slow", "late")

	final, err := compile(t, g).Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"slow", "late"}, final.Log)
}

func TestBranchesRunConcurrently(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(2)
	meet := func(name string) NodeFunc[testState] {
		return func(ctx context.Context, _ testState) (testState, error) {
			barrier.Done()
			done := make(chan struct{})
			go func() {
				barrier.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				return testState{}, errors.New("branches did not overlap")
			}
			return testState{Log: []string{name}}, nil
		}
	}

	g := New(merge)
	g.AddNode("left", meet("left"))
	g.AddNode("right", meet("right"))
	g.SetConditionalEntry(func(testState) []string { return []string{"left", "right"} }, "left", "right")

	final, err := compile(t, g).Invoke(context.Background(), testState{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"left", "right"}, final.Log)
}

func TestConditionalEntrySkipsUnroutedBranch(t *testing.T) {
	vectorCalls := 0
	vector := func(ctx context.Context, _ testState) (testState, error) {
		vectorCalls++
		return testState{}, nil
	}
	join := step("join", 1)
	r := compile(t, joinGraph(step("filter", 1), vector, join))

	final, err := r.Invoke(context.Background(), testState{Route: []string{"generate"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"generate", "filter", "join"}, final.Log)
	assert.Zero(t, vectorCalls)
}

func TestInvalidRoutes(t *testing.T) {
	r := compile(t, joinGraph(step("filter", 1), step("vector", 1), step("join", 1)))

	_, err := r.Invoke(context.Background(), testState{})
	assert.ErrorIs(t, err, ErrInvalidRoute)

	_, err = r.Invoke(context.Background(), testState{Route: []string{"join"}})
	assert.ErrorIs(t, err, ErrInvalidRoute)

	entries, err := r.Route(testState{Route: []string{"vector", "generate", "vector"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"vector", "generate"}, entries)
}

func TestCompileErrors(t *testing.T) {
	noop := step("x", 0)

	tests := []struct {
		name  string
		build func() *Graph[testState]
		want  error
	}{
		{
			name: "nil reducer",
			build: func() *Graph[testState] {
				return New[testState](nil).AddNode("a", noop).SetConditionalEntry(only("a"), "a")
			},
			want: ErrNilReducer,
		},
		{
			name: "no entry",
			build: func() *Graph[testState] {
				return New(merge).AddNode("a", noop)
			},
			want: ErrNoEntry,
		},
		{
			name: "unknown entry",
			build: func() *Graph[testState] {
				return New(merge).AddNode("a", noop).SetConditionalEntry(only("b"), "b")
			},
			want: ErrUnknownNode,
		},
		{
			name: "duplicate node",
			build: func() *Graph[testState] {
				return New(merge).AddNode("a", noop).AddNode("a", noop).SetConditionalEntry(only("a"), "a")
			},
			want: ErrDuplicateNode,
		},
		{
			name: "invalid node",
			build: func() *Graph[testState] {
				return New(merge).AddNode("", noop).AddNode("b", nil).AddNode("a", noop).SetConditionalEntry(only("a"), "a")
			},
			want: ErrInvalidNode,
		},
		{
			name: "unknown edge",
			build: func() *Graph[testState] {
				return New(merge).AddNode("a", noop).AddEdge("a", "ghost").SetConditionalEntry(only("a"), "a")
			},
			want: ErrUnknownNode,
		},
		{
			name: "cycle",
			build: func() *Graph[testState] {
				return New(merge).
					AddNode("a", noop).AddNode("b", noop).AddNode("c", noop).
					AddEdge("a", "b").AddEdge("b", "c").AddEdge("c", "b").
					SetConditionalEntry(only("a"), "a")
			},
			want: ErrCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Compile()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNodeFailureCancelsRun(t *testing.T) {
	boom := errors.New("boom")
	cancelled := make(chan struct{})
	joinCalls := 0

	g := New(merge)
	g.AddNode("blocked", func(ctx context.Context, _ testState) (testState, error) {
		<-ctx.Done()
		close(cancelled)
		return testState{}, ctx.Err()
	})
	g.AddNode("failing", func(ctx context.Context, _ testState) (testState, error) {
		return testState{}, boom
	})
	g.AddNode("join", func(ctx context.Context, _ testState) (testState, error) {
		joinCalls++
		return testState{}, nil
	}, Deferred())
	g.AddEdge("blocked", "join")
	g.AddEdge("failing", "join")
	g.SetConditionalEntry(func(testState) []string { return []string{"blocked", "failing"} }, "blocked", "failing")

	_, err := compile(t, g).Invoke(context.Background(), testState{})

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "failing", nodeErr.Node)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, joinCalls)

	select {
	case <-cancelled:
	default:
		t.Fatal("sibling node was not cancelled")
	}
}

func TestNodePanicBecomesError(t *testing.T) {
	g := New(merge)
	g.AddNode("a", func(ctx context.Context, _ testState) (testState, error) {
		panic("kaboom")
	})
	g.SetConditionalEntry(only("a"), "a")

	_, err := compile(t, g).Invoke(context.Background(), testState{})
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Contains(t, nodeErr.Error(), "kaboom")
}

func TestStream(t *testing.T) {
	g := New(merge)
	g.AddNode("a", step("a", 1)).AddNode("b", step("b", 2)).AddEdge("a", "b").SetConditionalEntry(only("a"), "a")

	var updates []Update[testState]
	for u, err := range compile(t, g).Stream(context.Background(), testState{}) {
		require.NoError(t, err)
		updates = append(updates, u)
	}

	require.Len(t, updates, 2)
	assert.Equal(t, 1, updates[0].Step)
	assert.Equal(t, "a", updates[0].Node)
	assert.Equal(t, []string{"a"}, updates[0].Output.Log)
	assert.Equal(t, 2, updates[1].Step)
	assert.Equal(t, []string{"b"}, updates[1].Output.Log)
	assert.Equal(t, []string{"a", "b"}, updates[1].State.Log)
}

func TestStreamBreakCancelsRun(t *testing.T) {
	cancelled := make(chan struct{})
	g := New(merge)
	g.AddNode("fast", step("fast", 1))
	g.AddNode("slow", func(ctx context.Context, _ testState) (testState, error) {
		<-ctx.Done()
		close(cancelled)
		return testState{}, ctx.Err()
	})
	g.SetConditionalEntry(func(testState) []string { return []string{"fast", "slow"} }, "fast", "slow")

	seen := 0
	for _, err := range compile(t, g).Stream(context.Background(), testState{}) {
		require.NoError(t, err)
		seen++
		break
	}
	assert.Equal(t, 1, seen)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("remaining node was not cancelled")
	}
}

func TestStreamReportsFailure(t *testing.T) {
	g := New(merge)
	g.AddNode("a", step("a", 1))
	g.AddNode("b", func(ctx context.Context, _ testState) (testState, error) {
		return testState{}, errors.New("nope")
	})
	g.AddEdge("a", "b").SetConditionalEntry(only("a"), "a")

	var nodes []string
	var lastErr error
	for u, err := range compile(t, g).Stream(context.Background(), testState{}) {
		if err != nil {
			lastErr = err
			continue
		}
		nodes = append(nodes, u.Node)
	}
	assert.Equal(t, []string{"a"}, nodes)
	var nodeErr *NodeError
	require.ErrorAs(t, lastErr, &nodeErr)
	assert.Equal(t, "b", nodeErr.Node)
}

func TestParentContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := New(merge)
	g.AddNode("a", func(ctx context.Context, _ testState) (testState, error) {
		cancel()
		return testState{Log: []string{"a"}}, nil
	})
	g.AddNode("b", step("b", 1))
	g.AddEdge("a", "b").SetConditionalEntry(only("a"), "a")

	final, err := compile(t, g).Invoke(ctx, testState{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, final.Log, "b")
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	g := New(merge)
	g.AddNode("a", func(ctx context.Context, s testState) (testState, error) {
		return testState{Values: map[string]int{"seen": s.Values["in"]}}, nil
	})
	g.SetConditionalEntry(only("a"), "a")
	r := compile(t, g)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			final, err := r.Invoke(context.Background(), testState{Values: map[string]int{"in": i}})
			assert.NoError(t, err)
			assert.Equal(t, i, final.Values["seen"])
		}()
	}
	wg.Wait()
}

func TestNodeErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := error(&NodeError{Node: "n", Err: inner})
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, `graph: node "n": inner`, err.Error())
}

// only routes every run to name.
func only(name string) Router[testState] {
	return func(testState) []string { return []string{name} }
}
