package registry

import (
	"context"
	"fmt"
)

// Static is an in-memory Reader with fixed contents. Used in tests;
// mirrors how the production reader shapes its results so the snapshot
// builder cannot tell them apart.
type Static struct {
	Entries []StaticService
}

// StaticService pairs a service with its instances.
type StaticService struct {
	Service   Service
	Instances []Instance
}

// ListServices returns the configured services.
func (s *Static) ListServices(ctx context.Context) ([]Service, error) {
	services := make([]Service, 0, len(s.Entries))
	for _, e := range s.Entries {
		services = append(services, e.Service)
	}
	return services, nil
}

// ListInstances returns the instances for the named service.
func (s *Static) ListInstances(ctx context.Context, svc Service) ([]Instance, error) {
	for _, e := range s.Entries {
		if e.Service.Name == svc.Name {
			return e.Instances, nil
		}
	}
	return nil, fmt.Errorf("unknown service %q", svc.Name)
}
