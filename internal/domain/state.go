package domain

// State identifies a step in the course authoring workflow.
type State string

// Workflow states in canonical order. Paused and abandoned carry no
// progress mapping; every other state maps to a fixed completion percentage.
const (
	StateInitial               State = "initial"
	StateTemplateSelection     State = "template_selection"
	StateRequirementsGathering State = "requirements_gathering"
	StateStructureGeneration   State = "structure_generation"
	StateStructureReview       State = "structure_review"
	StateContentGeneration     State = "content_generation"
	StateContentReview         State = "content_review"
	StateFinalReview           State = "final_review"
	StateArtifactCreation      State = "artifact_creation"
	StateCompleted             State = "completed"
	StatePaused                State = "paused"
	StateAbandoned             State = "abandoned"
)

// stateProgress maps each workflow state to its completion percentage.
var stateProgress = map[State]float64{
	StateInitial:               0,
	StateTemplateSelection:     10,
	StateRequirementsGathering: 20,
	StateStructureGeneration:   35,
	StateStructureReview:       45,
	StateContentGeneration:     60,
	StateContentReview:         75,
	StateFinalReview:           90,
	StateArtifactCreation:      95,
	StateCompleted:             100,
}

// knownStates is the closed set accepted at the API boundary. Workflow
// layers may still set sub-states outside this set on the aggregate;
// those leave progress untouched.
var knownStates = map[State]bool{
	StateInitial:               true,
	StateTemplateSelection:     true,
	StateRequirementsGathering: true,
	StateStructureGeneration:   true,
	StateStructureReview:       true,
	StateContentGeneration:     true,
	StateContentReview:         true,
	StateFinalReview:           true,
	StateArtifactCreation:      true,
	StateCompleted:             true,
	StatePaused:                true,
	StateAbandoned:             true,
}

// Progress returns the completion percentage for the state. ok is false
// for paused, abandoned, and any workflow-specific sub-state.
func (s State) Progress() (float64, bool) {
	p, ok := stateProgress[s]
	return p, ok
}

// Known reports whether the state belongs to the closed workflow set.
func (s State) Known() bool {
	return knownStates[s]
}

// Terminal reports whether the state ends the workflow.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAbandoned
}

// KnownStates returns the closed workflow state set in canonical order.
func KnownStates() []State {
	return []State{
		StateInitial,
		StateTemplateSelection,
		StateRequirementsGathering,
		StateStructureGeneration,
		StateStructureReview,
		StateContentGeneration,
		StateContentReview,
		StateFinalReview,
		StateArtifactCreation,
		StateCompleted,
		StatePaused,
		StateAbandoned,
	}
}
