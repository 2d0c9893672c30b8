package snapshot

import (
	"context"
	"fmt"

	"github.com/cartograph/cartograph/internal/registry"
)

// Build lists the whole registry and folds it into one normalized
// snapshot. The sequence is supplied by the caller (zero disables the
// engine's stale-snapshot guard).
//
// Build is all-or-nothing: any listing error aborts the snapshot rather
// than publishing a partial view, since the consumer would sweep every
// service the partial view missed.
func Build(ctx context.Context, reader registry.Reader, sequence int64) (*Snapshot, error) {
	services, err := reader.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}

	s := &Snapshot{Sequence: sequence}
	for _, svc := range services {
		instances, err := reader.ListInstances(ctx, svc)
		if err != nil {
			return nil, fmt.Errorf("build snapshot: %w", err)
		}

		record := ServiceRecord{
			Name:      svc.Name,
			DependsOn: svc.DependsOn,
		}
		for _, inst := range instances {
			record.Instances = append(record.Instances, InstanceRecord{
				ID:         inst.ID,
				Attributes: inst.Attributes,
			})
		}
		s.Services = append(s.Services, record)
	}

	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}
	return s, nil
}
