package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartograph/cartograph/internal/registry"
)

func TestBuild_FoldsRegistryIntoSnapshot(t *testing.T) {
	reader := &registry.Static{
		Entries: []registry.StaticService{
			{
				Service: registry.Service{ID: "srv-2", Name: "web", DependsOn: "api"},
				Instances: []registry.Instance{
					{ID: "i-2", Attributes: map[string]string{"az": "b"}},
					{ID: "i-1", Attributes: map[string]string{"az": "a"}},
				},
			},
			{
				Service: registry.Service{ID: "srv-1", Name: "api"},
			},
		},
	}

	s, err := Build(context.Background(), reader, 5)
	require.NoError(t, err)

	assert.Equal(t, int64(5), s.Sequence)
	require.Len(t, s.Services, 2)
	assert.Equal(t, "api", s.Services[0].Name)
	assert.Equal(t, "web", s.Services[1].Name)
	assert.Equal(t, "api", s.Services[1].DependsOn)
	// Builder output is normalized: instances come back sorted.
	assert.Equal(t, "i-1", s.Services[1].Instances[0].ID)
}

func TestBuild_EmptyRegistry(t *testing.T) {
	s, err := Build(context.Background(), &registry.Static{}, 0)
	require.NoError(t, err)
	assert.Empty(t, s.Services)
	assert.NoError(t, s.Validate())
}

type failingReader struct {
	services error
	instances error
}

func (f *failingReader) ListServices(ctx context.Context) ([]registry.Service, error) {
	if f.services != nil {
		return nil, f.services
	}
	return []registry.Service{{Name: "web"}}, nil
}

func (f *failingReader) ListInstances(ctx context.Context, svc registry.Service) ([]registry.Instance, error) {
	return nil, f.instances
}

func TestBuild_AbortsOnListingError(t *testing.T) {
	boom := errors.New("throttled")

	_, err := Build(context.Background(), &failingReader{services: boom}, 0)
	assert.ErrorIs(t, err, boom)

	_, err = Build(context.Background(), &failingReader{instances: boom}, 0)
	assert.ErrorIs(t, err, boom)
}
