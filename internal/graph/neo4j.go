package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4j is the production Store, writing to a Neo4j database over Bolt.
//
// Nodes carry the label for their kind (Service, Instance), a unique `key`
// property, the `last_snapshot_id` tag, and their domain attributes.
// Relationships carry the tag only. Labels and relationship types are
// mapped through fixed tables, never interpolated from input.
type Neo4j struct {
	driver neo4j.DriverWithContext
	dbName string
}

// NewNeo4j connects to the database at uri with basic auth. Callers own
// the returned store's lifecycle and must Close it.
func NewNeo4j(uri, username, password string) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: connect %s: %w", uri, err)
	}
	return &Neo4j{driver: driver}, nil
}

// Close tears down the driver and its connection pool.
func (n *Neo4j) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

// VerifyConnectivity checks the database is reachable. Used at startup so
// a misconfigured endpoint fails fast instead of on the first delivery.
func (n *Neo4j) VerifyConnectivity(ctx context.Context) error {
	return n.driver.VerifyConnectivity(ctx)
}

var nodeLabels = map[NodeKind]string{
	NodeService:  "Service",
	NodeInstance: "Instance",
}

var edgeTypes = map[EdgeKind]string{
	EdgeDependsOn:   "DEPENDS_ON",
	EdgeHasInstance: "HAS_INSTANCE",
}

// UpsertNode MERGEs the node by key, replaces its attributes, and stamps
// the tag.
func (n *Neo4j) UpsertNode(ctx context.Context, ref NodeRef, attrs map[string]string, tag string) error {
	label, ok := nodeLabels[ref.Kind]
	if !ok {
		return fmt.Errorf("graph: unknown node kind %q", ref.Kind)
	}

	props := make(map[string]any, len(attrs))
	for k, v := range attrs {
		props[k] = v
	}

	cypher := fmt.Sprintf(`
		MERGE (n:%s {key: $key})
		SET n = $props, n.key = $key, n.last_snapshot_id = $tag
	`, label)
	return n.write(ctx, cypher, map[string]any{
		"key":   ref.Key,
		"props": props,
		"tag":   tag,
	})
}

// UpsertEdge MERGEs the relationship between two existing nodes. MATCH on
// both endpoints means a missing node yields zero writes; that is reported
// as an error rather than silently dropped.
func (n *Neo4j) UpsertEdge(ctx context.Context, kind EdgeKind, from, to NodeRef, tag string) error {
	relType, ok := edgeTypes[kind]
	if !ok {
		return fmt.Errorf("graph: unknown edge kind %q", kind)
	}
	fromLabel, ok := nodeLabels[from.Kind]
	if !ok {
		return fmt.Errorf("graph: unknown node kind %q", from.Kind)
	}
	toLabel, ok := nodeLabels[to.Kind]
	if !ok {
		return fmt.Errorf("graph: unknown node kind %q", to.Kind)
	}

	cypher := fmt.Sprintf(`
		MATCH (a:%s {key: $from}), (b:%s {key: $to})
		MERGE (a)-[r:%s]->(b)
		SET r.last_snapshot_id = $tag
		RETURN count(r) AS written
	`, fromLabel, toLabel, relType)

	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	written, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"from": from.Key, "to": to.Key, "tag": tag})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		count, _ := record.Get("written")
		return count, nil
	})
	if err != nil {
		return fmt.Errorf("graph: upsert edge %s %s->%s: %w", kind, from.Key, to.Key, err)
	}
	if count, ok := written.(int64); ok && count == 0 {
		return fmt.Errorf("graph: edge %s %s->%s: endpoint missing", kind, from.Key, to.Key)
	}
	return nil
}

// DeleteNotTagged removes stale relationships first, then stale nodes with
// whatever edges still hang off them. Both statements run in one write
// transaction so readers never see a partially swept graph.
func (n *Neo4j) DeleteNotTagged(ctx context.Context, tag string) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		statements := []string{
			`MATCH ()-[r]->() WHERE r.last_snapshot_id <> $tag DELETE r`,
			`MATCH (m) WHERE m.last_snapshot_id <> $tag DETACH DELETE m`,
		}
		for _, stmt := range statements {
			if _, err := tx.Run(ctx, stmt, map[string]any{"tag": tag}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graph: sweep tag %s: %w", tag, err)
	}
	return nil
}

func (n *Neo4j) write(ctx context.Context, cypher string, params map[string]any) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, cypher, params)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: write: %w", err)
	}
	return nil
}
