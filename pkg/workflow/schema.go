package workflow

import (
	"fmt"
	"strings"

	"github.com/hiveplane/hiveplane/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema constrains the shape of persisted workflow definition
// documents before they are decoded into models.Workflow.
const definitionSchema = `{
	"type": "object",
	"required": ["id", "name", "steps"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 3},
		"description": {"type": "string"},
		"steps": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "name", "type"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"type": {"type": "string", "minLength": 1},
					"depends_on": {"type": "array", "items": {"type": "string"}},
					"required_capabilities": {"type": "array", "items": {"type": "string"}},
					"timeout": {"type": "integer", "minimum": 0},
					"retry_policy": {
						"type": "object",
						"properties": {
							"max_attempts": {"type": "integer", "minimum": 0},
							"backoff": {"type": "integer", "minimum": 0}
						}
					}
				}
			}
		},
		"metadata": {"type": "object"}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(definitionSchema)

// ValidateDefinitionDocument checks a raw workflow definition JSON
// document against the definition schema.
func ValidateDefinitionDocument(document []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("validate workflow definition: %w", err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return fmt.Errorf("invalid workflow definition: %s", strings.Join(details, "; "))
}

// ValidateSteps checks the step graph: every dependency must name an
// existing step, and the graph must be acyclic.
func ValidateSteps(steps []models.WorkflowStep) error {
	ids := make(map[string]bool, len(steps))
	for _, step := range steps {
		ids[step.ID] = true
	}

	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))

	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("step %s depends on %s: %w", step.ID, dep, ErrUnknownDependency)
			}

			indegree[step.ID]++
			dependents[dep] = append(dependents[dep], step.ID)
		}
	}

	// Kahn's algorithm: if a topological order covers every step, the
	// graph is acyclic.
	ready := make([]string, 0, len(steps))

	for _, step := range steps {
		if indegree[step.ID] == 0 {
			ready = append(ready, step.ID)
		}
	}

	visited := 0

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		visited++

		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if visited != len(steps) {
		return ErrDependencyCycle
	}

	return nil
}
