package flowline

import (
	"fmt"
	"sort"
)

// End is the virtual terminal node. An edge pointing at End halts the
// run; End has no stage and never executes.
const End = "__end__"

// node holds one entry of the routing table: the stage to run plus
// either a single successor or a predicate with its path map.
type node[S any] struct {
	name      string
	stage     Stage[S]
	next      string
	predicate Predicate[S]
	paths     map[string]string
}

// Graph is an immutable description of stages and edges, produced by
// Builder.Compile. It is written once at startup and safely shared by
// all concurrent runs; the Executor never mutates it.
type Graph[S any] struct {
	nodes     map[string]*node[S]
	entry     string
	errorNode string
	capture   func(state S, cause error)
}

// Builder assembles a Graph. Methods may be chained; construction
// problems are collected and reported by Compile rather than
// panicking mid-chain.
type Builder[S any] struct {
	nodes     map[string]*node[S]
	order     []string
	entry     string
	errorNode string
	capture   func(state S, cause error)
	errs      []error
}

// NewBuilder creates an empty graph builder.
func NewBuilder[S any]() *Builder[S] {
	return &Builder[S]{nodes: make(map[string]*node[S])}
}

// AddNode registers a named stage. Names must be unique and must not
// collide with the End sentinel.
func (b *Builder[S]) AddNode(name string, stage Stage[S]) *Builder[S] {
	switch {
	case name == "" || name == End:
		b.errs = append(b.errs, fmt.Errorf("invalid node name %q", name))
	case stage == nil:
		b.errs = append(b.errs, fmt.Errorf("node %q has a nil stage", name))
	default:
		if _, exists := b.nodes[name]; exists {
			b.errs = append(b.errs, fmt.Errorf("node %q already defined", name))
			return b
		}
		b.nodes[name] = &node[S]{name: name, stage: stage}
		b.order = append(b.order, name)
	}
	return b
}

// AddEdge adds an unconditional edge: after from's stage runs, the
// run moves to to (or halts, if to is End).
func (b *Builder[S]) AddEdge(from, to string) *Builder[S] {
	n, ok := b.nodes[from]
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("edge from unknown node %q", from))
		return b
	}
	if n.next != "" || n.predicate != nil {
		b.errs = append(b.errs, fmt.Errorf("node %q already has an outgoing edge", from))
		return b
	}
	n.next = to
	return b
}

// AddConditionalEdge adds a branching edge: after from's stage runs,
// predicate is evaluated against the updated state and its label is
// looked up in paths to pick the successor.
func (b *Builder[S]) AddConditionalEdge(from string, predicate Predicate[S], paths map[string]string) *Builder[S] {
	n, ok := b.nodes[from]
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("conditional edge from unknown node %q", from))
		return b
	}
	if n.next != "" || n.predicate != nil {
		b.errs = append(b.errs, fmt.Errorf("node %q already has an outgoing edge", from))
		return b
	}
	if predicate == nil {
		b.errs = append(b.errs, fmt.Errorf("conditional edge from %q has a nil predicate", from))
		return b
	}
	if len(paths) == 0 {
		b.errs = append(b.errs, fmt.Errorf("conditional edge from %q has an empty path map", from))
		return b
	}
	n.predicate = predicate
	n.paths = make(map[string]string, len(paths))
	for label, to := range paths {
		n.paths[label] = to
	}
	return b
}

// SetEntry designates the node the Executor starts from.
func (b *Builder[S]) SetEntry(name string) *Builder[S] {
	b.entry = name
	return b
}

// SetErrorNode designates the node that intercepts failures. When a
// stage returns an error, or the run is cancelled between stages, the
// Executor calls capture to record the cause into the state and then
// routes to this node instead of propagating the failure.
func (b *Builder[S]) SetErrorNode(name string, capture func(state S, cause error)) *Builder[S] {
	b.errorNode = name
	b.capture = capture
	return b
}

// Compile validates the builder and produces the immutable Graph.
// Reachability of End from every node is a constructed-graph
// invariant that Compile does not prove; the Executor's step budget
// defends against violations at runtime.
func (b *Builder[S]) Compile() (*Graph[S], error) {
	errs := b.errs
	if b.entry == "" {
		errs = append(errs, fmt.Errorf("no entry node set"))
	} else if _, ok := b.nodes[b.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry node %q not defined", b.entry))
	}
	if b.errorNode != "" {
		if _, ok := b.nodes[b.errorNode]; !ok {
			errs = append(errs, fmt.Errorf("error node %q not defined", b.errorNode))
		}
	}
	for _, name := range b.order {
		n := b.nodes[name]
		if n.next == "" && n.predicate == nil {
			errs = append(errs, fmt.Errorf("node %q has no outgoing edge", name))
			continue
		}
		if n.next != "" {
			if err := b.checkTarget(name, n.next); err != nil {
				errs = append(errs, err)
			}
		}
		for label, to := range n.paths {
			if err := b.checkTarget(name, to); err != nil {
				errs = append(errs, fmt.Errorf("label %q: %w", label, err))
			}
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid graph: %w", joinErrors(errs))
	}

	nodes := make(map[string]*node[S], len(b.nodes))
	for name, n := range b.nodes {
		nodes[name] = n
	}
	return &Graph[S]{
		nodes:     nodes,
		entry:     b.entry,
		errorNode: b.errorNode,
		capture:   b.capture,
	}, nil
}

func (b *Builder[S]) checkTarget(from, to string) error {
	if to == End {
		return nil
	}
	if _, ok := b.nodes[to]; !ok {
		return fmt.Errorf("node %q routes to unknown node %q", from, to)
	}
	return nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := errs[0].Error()
	for _, err := range errs[1:] {
		msg += "; " + err.Error()
	}
	return fmt.Errorf("%s", msg)
}

// Entry returns the name of the entry node.
func (g *Graph[S]) Entry() string { return g.entry }

// ErrorNode returns the name of the error-interception node, or "" if
// the graph has none.
func (g *Graph[S]) ErrorNode() string { return g.errorNode }

// NodeCount returns the number of nodes in the graph.
func (g *Graph[S]) NodeCount() int { return len(g.nodes) }

// Nodes returns the node names in lexical order.
func (g *Graph[S]) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
