// Package artifact defines the materializer boundary: the external
// collaborator that turns a finalized course outline into concrete
// content entities. The session engine records the outcome of
// materialization but never creates artifacts itself.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no materialized outline exists for a session.
var ErrNotFound = errors.New("artifact not found")

// Lesson is one unit of instruction inside a section.
type Lesson struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

// Section groups lessons under a course.
type Section struct {
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons,omitempty"`
}

// Outline is the validated course structure extracted from a completed
// session's working context.
type Outline struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Sections    []Section `json:"sections"`
}

// Validate checks that the outline is materializable.
func (o Outline) Validate() error {
	if o.Title == "" {
		return errors.New("outline title is required")
	}
	if len(o.Sections) == 0 {
		return errors.New("outline needs at least one section")
	}
	for i, sec := range o.Sections {
		if sec.Title == "" {
			return fmt.Errorf("section %d has no title", i+1)
		}
	}
	return nil
}

// FromContext extracts and validates the outline stored under the
// "outline" key of a session's working context.
func FromContext(sessionContext map[string]any) (Outline, error) {
	raw, ok := sessionContext["outline"]
	if !ok {
		return Outline{}, errors.New("session context has no outline")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return Outline{}, fmt.Errorf("encoding outline: %w", err)
	}
	var o Outline
	if err := json.Unmarshal(data, &o); err != nil {
		return Outline{}, fmt.Errorf("decoding outline: %w", err)
	}
	return o, o.Validate()
}

// Receipt identifies the entities a materializer created.
type Receipt struct {
	CourseID   string   `json:"course_id"`
	SectionIDs []string `json:"section_ids,omitempty"`
	LessonIDs  []string `json:"lesson_ids,omitempty"`
}

// Materializer turns a finalized outline into created entities.
type Materializer interface {
	// Materialize creates the artifact for the session and returns
	// identifiers for what was created.
	Materialize(ctx context.Context, sessionID string, outline Outline) (*Receipt, error)
}
