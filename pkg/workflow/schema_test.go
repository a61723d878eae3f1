package workflow

import (
	"testing"

	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefinitionDocument(t *testing.T) {
	valid := []byte(`{
		"id": "wf-1",
		"name": "nightly pipeline",
		"steps": [
			{"id": "build", "name": "Build", "type": "shell"},
			{"id": "test", "name": "Test", "type": "shell", "depends_on": ["build"]}
		]
	}`)
	assert.NoError(t, ValidateDefinitionDocument(valid))

	missingSteps := []byte(`{"id": "wf-1", "name": "nightly pipeline"}`)
	assert.Error(t, ValidateDefinitionDocument(missingSteps))

	shortName := []byte(`{"id": "wf-1", "name": "ab", "steps": [{"id": "a", "name": "A", "type": "shell"}]}`)
	assert.Error(t, ValidateDefinitionDocument(shortName))

	emptySteps := []byte(`{"id": "wf-1", "name": "pipeline", "steps": []}`)
	assert.Error(t, ValidateDefinitionDocument(emptySteps))
}

func TestValidateSteps(t *testing.T) {
	require.NoError(t, ValidateSteps([]models.WorkflowStep{
		{ID: "a", Name: "A", Type: "work"},
		{ID: "b", Name: "B", Type: "work", DependsOn: []string{"a"}},
	}))

	err := ValidateSteps([]models.WorkflowStep{
		{ID: "a", Name: "A", Type: "work", DependsOn: []string{"missing"}},
	})
	assert.ErrorIs(t, err, ErrUnknownDependency)

	err = ValidateSteps([]models.WorkflowStep{
		{ID: "a", Name: "A", Type: "work", DependsOn: []string{"c"}},
		{ID: "b", Name: "B", Type: "work", DependsOn: []string{"a"}},
		{ID: "c", Name: "C", Type: "work", DependsOn: []string{"b"}},
	})
	assert.ErrorIs(t, err, ErrDependencyCycle)
}
