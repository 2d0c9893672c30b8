package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store that records every operation it performs.
// Tests use the operation log to assert ordering properties (upsert before
// sweep, no interleaving between passes) that the final graph state alone
// cannot show.
type Memory struct {
	mu    sync.Mutex
	nodes map[NodeRef]*memoryNode
	edges map[string]*memoryEdge
	log   []string
}

type memoryNode struct {
	attrs map[string]string
	tag   string
}

type memoryEdge struct {
	kind EdgeKind
	from NodeRef
	to   NodeRef
	tag  string
}

// NewMemory creates an empty graph.
func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[NodeRef]*memoryNode),
		edges: make(map[string]*memoryEdge),
	}
}

// UpsertNode creates or replaces the node's attributes and tag.
func (m *Memory) UpsertNode(ctx context.Context, ref NodeRef, attrs map[string]string, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	m.nodes[ref] = &memoryNode{attrs: copied, tag: tag}
	m.log = append(m.log, fmt.Sprintf("upsert_node %s tag=%s", ref, tag))
	return nil
}

// UpsertEdge creates or re-tags the edge. Fails if either endpoint is
// missing; the adapter contract forbids orphan edges.
func (m *Memory) UpsertEdge(ctx context.Context, kind EdgeKind, from, to NodeRef, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[from]; !ok {
		return fmt.Errorf("graph: edge %s from missing node %s", kind, from)
	}
	if _, ok := m.nodes[to]; !ok {
		return fmt.Errorf("graph: edge %s to missing node %s", kind, to)
	}

	id := edgeID(kind, from, to)
	m.edges[id] = &memoryEdge{kind: kind, from: from, to: to, tag: tag}
	m.log = append(m.log, fmt.Sprintf("upsert_edge %s %s->%s tag=%s", kind, from, to, tag))
	return nil
}

// DeleteNotTagged sweeps stale nodes and edges.
func (m *Memory) DeleteNotTagged(ctx context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.edges {
		if e.tag != tag {
			delete(m.edges, id)
		}
	}
	for ref, n := range m.nodes {
		if n.tag != tag {
			delete(m.nodes, ref)
			for id, e := range m.edges {
				if e.from == ref || e.to == ref {
					delete(m.edges, id)
				}
			}
		}
	}
	m.log = append(m.log, fmt.Sprintf("sweep tag=%s", tag))
	return nil
}

// NodeKeys returns the sorted keys of all nodes of a kind. Test helper.
func (m *Memory) NodeKeys(kind NodeKind) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for ref := range m.nodes {
		if ref.Kind == kind {
			keys = append(keys, ref.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Node returns a node's attributes and tag. Test helper.
func (m *Memory) Node(ref NodeRef) (attrs map[string]string, tag string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[ref]
	if !ok {
		return nil, "", false
	}
	return n.attrs, n.tag, true
}

// EdgeList returns sorted "KIND from->to" strings for all edges of a kind.
// Test helper.
func (m *Memory) EdgeList(kind EdgeKind) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, e := range m.edges {
		if e.kind == kind {
			out = append(out, fmt.Sprintf("%s->%s", e.from.Key, e.to.Key))
		}
	}
	sort.Strings(out)
	return out
}

// OpLog returns a copy of the recorded operations in execution order.
func (m *Memory) OpLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.log...)
}

func edgeID(kind EdgeKind, from, to NodeRef) string {
	return strings.Join([]string{string(kind), from.String(), to.String()}, "|")
}
