package saga

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/filevault-api/internal/model"
)

func noopStep(name string) Step {
	return Step{
		Name: name,
		Execute: func(ctx context.Context, data model.JSONMap) (model.JSONMap, error) {
			return nil, nil
		},
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&Definition{
		Name:  "file.replicate",
		Steps: []Step{noopStep("copy")},
	}))

	def, ok := r.Get("file.replicate")
	assert.True(t, ok)
	assert.Len(t, def.Steps, 1)

	_, ok = r.Get("unknown")
	assert.False(t, ok)
}

func TestRegistryRejectsInvalidDefinitions(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&Definition{Name: "empty"}))
	assert.Error(t, r.Register(&Definition{
		Name:  "no-execute",
		Steps: []Step{{Name: "broken"}},
	}))
}

func TestRegistryReRegisterReplaces(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&Definition{
		Name:  "file.replicate",
		Steps: []Step{noopStep("copy")},
	}))
	require.NoError(t, r.Register(&Definition{
		Name:  "file.replicate",
		Steps: []Step{noopStep("copy"), noopStep("verify")},
	}))

	def, ok := r.Get("file.replicate")
	require.True(t, ok)
	assert.Len(t, def.Steps, 2)
}
