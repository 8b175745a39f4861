package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNilReducer is returned when a graph is compiled without a reducer.
	ErrNilReducer = errors.New("graph: reducer required")

	// ErrInvalidNode is returned for nodes with an empty name or nil function.
	ErrInvalidNode = errors.New("graph: invalid node")

	// ErrDuplicateNode is returned when two nodes share a name.
	ErrDuplicateNode = errors.New("graph: duplicate node")

	// ErrUnknownNode is returned when an edge or entry names an undeclared node.
	ErrUnknownNode = errors.New("graph: unknown node")

	// ErrCycle is returned when the edges form a cycle.
	ErrCycle = errors.New("graph: cycle detected")

	// ErrNoEntry is returned when a graph is compiled without an entry.
	ErrNoEntry = errors.New("graph: no entry point")

	// ErrInvalidRoute is returned when the router selects no node or a node
	// that is not one of its declared targets.
	ErrInvalidRoute = errors.New("graph: invalid route")
)

// NodeError reports the failure of a single node.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("graph: node %q: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
