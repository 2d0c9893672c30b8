package snapshot

import (
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Snapshot is one complete view of the registry. It is created once by the
// producer, serialized onto the dispatch channel, and discarded by the
// consumer after one reconciliation pass. Snapshots are value-like: nothing
// mutates one after Normalize.
type Snapshot struct {
	// Sequence is an optional monotonic producer-side counter. Zero means
	// "unordered": the engine applies the snapshot unconditionally. A
	// positive sequence enables the stale-snapshot guard in the engine.
	Sequence int64 `json:"sequence,omitempty"`

	// Services enumerates every service in the registry namespace.
	Services []ServiceRecord `json:"services"`
}

// ServiceRecord is one service and everything registered under it.
type ServiceRecord struct {
	// Name is the unique service key within the snapshot.
	Name string `json:"name"`

	// DependsOn optionally names another service this one depends on,
	// as declared by the registry tag. A name that does not resolve to a
	// service in the same snapshot is dropped during reconciliation.
	DependsOn string `json:"depends_on,omitempty"`

	// Instances are the registered instances, unique by ID within the
	// service.
	Instances []InstanceRecord `json:"instances,omitempty"`
}

// InstanceRecord is a single registered instance of a service.
type InstanceRecord struct {
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Normalize puts the snapshot into canonical form:
//   - service names, dependency names, and instance IDs are NFC normalized
//     so spelling variants from the registry key identically
//   - services are sorted by name, instances by ID
//   - duplicate instance IDs within a service collapse to the last record
//
// Normalize returns the receiver for chaining.
func (s *Snapshot) Normalize() *Snapshot {
	for i := range s.Services {
		svc := &s.Services[i]
		svc.Name = norm.NFC.String(svc.Name)
		svc.DependsOn = norm.NFC.String(svc.DependsOn)

		seen := make(map[string]int, len(svc.Instances))
		deduped := svc.Instances[:0]
		for _, inst := range svc.Instances {
			inst.ID = norm.NFC.String(inst.ID)
			if j, ok := seen[inst.ID]; ok {
				deduped[j] = inst
				continue
			}
			seen[inst.ID] = len(deduped)
			deduped = append(deduped, inst)
		}
		svc.Instances = deduped
		sort.Slice(svc.Instances, func(a, b int) bool {
			return svc.Instances[a].ID < svc.Instances[b].ID
		})
	}
	sort.Slice(s.Services, func(a, b int) bool {
		return s.Services[a].Name < s.Services[b].Name
	})
	return s
}

// Validate checks structural invariants after normalization. An empty
// snapshot (zero services) is valid: it means the registry namespace is
// empty and everything in the graph should be swept.
func (s *Snapshot) Validate() error {
	names := make(map[string]struct{}, len(s.Services))
	for _, svc := range s.Services {
		if svc.Name == "" {
			return fmt.Errorf("service with empty name")
		}
		if _, dup := names[svc.Name]; dup {
			return fmt.Errorf("duplicate service name %q", svc.Name)
		}
		names[svc.Name] = struct{}{}

		for _, inst := range svc.Instances {
			if inst.ID == "" {
				return fmt.Errorf("service %q: instance with empty id", svc.Name)
			}
		}
	}
	return nil
}

// HasService reports whether a service with the given (normalized) name is
// present in the snapshot. Used by the engine to resolve dependency edges.
func (s *Snapshot) HasService(name string) bool {
	for _, svc := range s.Services {
		if svc.Name == name {
			return true
		}
	}
	return false
}
