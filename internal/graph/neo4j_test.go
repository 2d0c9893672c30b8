package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeo4j_LabelTablesCoverAllKinds(t *testing.T) {
	assert.Contains(t, nodeLabels, NodeService)
	assert.Contains(t, nodeLabels, NodeInstance)
	assert.Contains(t, edgeTypes, EdgeDependsOn)
	assert.Contains(t, edgeTypes, EdgeHasInstance)
}

// The driver connects lazily, so kind validation can be tested without a
// running database: unknown kinds must fail before any network I/O.
func TestNeo4j_RejectsUnknownKinds(t *testing.T) {
	store, err := NewNeo4j("bolt://localhost:7687", "neo4j", "secret")
	require.NoError(t, err)
	ctx := context.Background()

	err = store.UpsertNode(ctx, NodeRef{Kind: "volume", Key: "v1"}, nil, "t1")
	assert.Error(t, err)

	err = store.UpsertEdge(ctx, "MOUNTS",
		NodeRef{Kind: NodeService, Key: "web"},
		NodeRef{Kind: NodeService, Key: "api"}, "t1")
	assert.Error(t, err)
}
