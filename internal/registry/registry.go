// Package registry abstracts the service registry the producer reads from.
// The registry is a collaborator: cartograph only lists what exists and
// never writes back.
package registry

import "context"

// DependsOnTagKey is the well-known service tag whose value names the
// service this one depends on. One tag, one target; anything else the
// registry carries is ignored.
const DependsOnTagKey = "GRAPH_DEPENDS_ON"

// Service is one registry service as listed. ID is the provider-specific
// handle used to list instances; Name is the stable key that ends up in
// the graph.
type Service struct {
	ID        string
	Name      string
	DependsOn string // value of DependsOnTagKey, empty if absent
}

// Instance is one registered instance of a service.
type Instance struct {
	ID         string
	Attributes map[string]string
}

// Reader lists the registry. Implementations must return complete results
// (paginate internally): the snapshot built from these listings is treated
// as the full truth, and anything missing gets swept from the graph.
type Reader interface {
	// ListServices returns every service in the configured namespace,
	// including its dependency tag value.
	ListServices(ctx context.Context) ([]Service, error)

	// ListInstances returns every instance registered under the service.
	ListInstances(ctx context.Context, svc Service) ([]Instance, error)
}
