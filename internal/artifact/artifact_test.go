package artifact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOutline() Outline {
	return Outline{
		Title:       "Intro to Gardening",
		Description: "A practical first course.",
		Sections: []Section{
			{Title: "Soil", Lessons: []Lesson{{Title: "Composition"}, {Title: "Preparation"}}},
			{Title: "Planting", Lessons: []Lesson{{Title: "Seeds"}}},
		},
	}
}

func TestOutlineValidate(t *testing.T) {
	assert.NoError(t, sampleOutline().Validate())

	missing := sampleOutline()
	missing.Title = ""
	assert.Error(t, missing.Validate())

	empty := sampleOutline()
	empty.Sections = nil
	assert.Error(t, empty.Validate())

	untitled := sampleOutline()
	untitled.Sections[1].Title = ""
	assert.ErrorContains(t, untitled.Validate(), "section 2")
}

func TestFromContext(t *testing.T) {
	sc := map[string]any{
		"outline": map[string]any{
			"title": "Intro to Gardening",
			"sections": []any{
				map[string]any{"title": "Soil"},
			},
		},
	}
	o, err := FromContext(sc)
	require.NoError(t, err)
	assert.Equal(t, "Intro to Gardening", o.Title)
	require.Len(t, o.Sections, 1)
	assert.Equal(t, "Soil", o.Sections[0].Title)
}

func TestFromContextMissing(t *testing.T) {
	_, err := FromContext(map[string]any{})
	assert.Error(t, err)
}

func TestFromContextInvalid(t *testing.T) {
	sc := map[string]any{"outline": map[string]any{"title": ""}}
	_, err := FromContext(sc)
	assert.Error(t, err)
}

func TestMemoryMaterialize(t *testing.T) {
	m := NewMemoryMaterializer()
	receipt, err := m.Materialize(context.Background(), "sess-1", sampleOutline())
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.CourseID)
	assert.Len(t, receipt.SectionIDs, 2)
	assert.Len(t, receipt.LessonIDs, 3)
	assert.Equal(t, 1, m.Len())

	outline, got, err := m.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Intro to Gardening", outline.Title)
	assert.Equal(t, receipt.CourseID, got.CourseID)
}

func TestMemoryMaterializeReplaces(t *testing.T) {
	m := NewMemoryMaterializer()
	first, err := m.Materialize(context.Background(), "sess-1", sampleOutline())
	require.NoError(t, err)
	second, err := m.Materialize(context.Background(), "sess-1", sampleOutline())
	require.NoError(t, err)
	assert.NotEqual(t, first.CourseID, second.CourseID)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryMaterializeRejectsInvalid(t *testing.T) {
	m := NewMemoryMaterializer()
	_, err := m.Materialize(context.Background(), "", sampleOutline())
	assert.Error(t, err)

	bad := sampleOutline()
	bad.Sections = nil
	_, err = m.Materialize(context.Background(), "sess-1", bad)
	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryGetNotFound(t *testing.T) {
	m := NewMemoryMaterializer()
	_, _, err := m.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
