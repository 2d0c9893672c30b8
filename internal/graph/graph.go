// Package graph is the adapter boundary to the graph database. The
// reconciliation engine only ever issues three operations: upsert a node,
// upsert an edge, and sweep everything not carrying the current snapshot
// tag. Everything else about the database stays behind this interface.
package graph

import (
	"context"
	"fmt"
)

// NodeKind labels a vertex.
type NodeKind string

const (
	NodeService  NodeKind = "service"
	NodeInstance NodeKind = "instance"
)

// EdgeKind labels a relationship.
type EdgeKind string

const (
	// EdgeDependsOn is a service-to-service dependency edge.
	EdgeDependsOn EdgeKind = "DEPENDS_ON"
	// EdgeHasInstance connects a service to one of its instances.
	EdgeHasInstance EdgeKind = "HAS_INSTANCE"
)

// NodeRef addresses one vertex by kind and key. Service nodes are keyed by
// service name; instance nodes by InstanceKey.
type NodeRef struct {
	Kind NodeKind
	Key  string
}

// InstanceKey builds the composite key for an instance node. Instance IDs
// are only unique within their service, so the service name is part of the
// key.
func InstanceKey(service, instanceID string) string {
	return service + "/" + instanceID
}

func (r NodeRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.Key)
}

// Store executes graph writes for one reconciliation pass.
//
// Implementations must guarantee that an edge never references a missing
// node: UpsertEdge is called only after both endpoints were upserted, and
// the implementation must fail (not silently create endpoints) if one is
// absent.
type Store interface {
	// UpsertNode creates or updates the node, replaces its domain
	// attributes, and stamps it with tag. Idempotent.
	UpsertNode(ctx context.Context, ref NodeRef, attrs map[string]string, tag string) error

	// UpsertEdge creates or updates the edge between two existing nodes
	// and stamps it with tag. Idempotent.
	UpsertEdge(ctx context.Context, kind EdgeKind, from, to NodeRef, tag string) error

	// DeleteNotTagged removes every node and edge whose tag differs from
	// tag, including edges incident to deleted nodes.
	DeleteNotTagged(ctx context.Context, tag string) error
}
