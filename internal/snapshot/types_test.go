package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_SortsServicesAndInstances(t *testing.T) {
	s := &Snapshot{
		Services: []ServiceRecord{
			{Name: "web", Instances: []InstanceRecord{{ID: "i-2"}, {ID: "i-1"}}},
			{Name: "api"},
		},
	}
	s.Normalize()

	require.Len(t, s.Services, 2)
	assert.Equal(t, "api", s.Services[0].Name)
	assert.Equal(t, "web", s.Services[1].Name)
	assert.Equal(t, "i-1", s.Services[1].Instances[0].ID)
	assert.Equal(t, "i-2", s.Services[1].Instances[1].ID)
}

func TestNormalize_DeduplicatesInstances_LastWins(t *testing.T) {
	s := &Snapshot{
		Services: []ServiceRecord{{
			Name: "web",
			Instances: []InstanceRecord{
				{ID: "i-1", Attributes: map[string]string{"az": "a"}},
				{ID: "i-1", Attributes: map[string]string{"az": "b"}},
			},
		}},
	}
	s.Normalize()

	require.Len(t, s.Services[0].Instances, 1)
	assert.Equal(t, "b", s.Services[0].Instances[0].Attributes["az"])
}

func TestNormalize_NFCFoldsNames(t *testing.T) {
	// "é" as 'e' + combining acute vs precomposed U+00E9.
	decomposed := "cafe\u0301"
	precomposed := "caf\u00e9"

	s := &Snapshot{
		Services: []ServiceRecord{
			{Name: decomposed, DependsOn: decomposed},
		},
	}
	s.Normalize()

	assert.Equal(t, precomposed, s.Services[0].Name)
	assert.Equal(t, precomposed, s.Services[0].DependsOn)
	assert.True(t, s.HasService(precomposed))
}

func TestValidate_EmptySnapshotIsValid(t *testing.T) {
	s := (&Snapshot{}).Normalize()
	assert.NoError(t, s.Validate())
}

func TestValidate_RejectsDuplicateServiceNames(t *testing.T) {
	s := &Snapshot{
		Services: []ServiceRecord{{Name: "web"}, {Name: "web"}},
	}
	s.Normalize()
	assert.Error(t, s.Validate())
}

func TestValidate_RejectsEmptyNames(t *testing.T) {
	assert.Error(t, (&Snapshot{Services: []ServiceRecord{{Name: ""}}}).Validate())

	s := &Snapshot{
		Services: []ServiceRecord{{Name: "web", Instances: []InstanceRecord{{ID: ""}}}},
	}
	assert.Error(t, s.Validate())
}
