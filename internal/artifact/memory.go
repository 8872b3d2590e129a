package artifact

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryMaterializer keeps materialized outlines in process memory.
// Useful for development and tests where no course backend exists.
type MemoryMaterializer struct {
	mu       sync.RWMutex
	outlines map[string]Outline
	receipts map[string]*Receipt
}

// NewMemoryMaterializer returns an empty in-memory materializer.
func NewMemoryMaterializer() *MemoryMaterializer {
	return &MemoryMaterializer{
		outlines: make(map[string]Outline),
		receipts: make(map[string]*Receipt),
	}
}

// Materialize assigns synthetic identifiers to the outline's entities
// and records the result keyed by session. Re-materializing a session
// replaces the previous record.
func (m *MemoryMaterializer) Materialize(ctx context.Context, sessionID string, outline Outline) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if err := outline.Validate(); err != nil {
		return nil, err
	}

	receipt := &Receipt{CourseID: uuid.New().String()}
	for _, sec := range outline.Sections {
		receipt.SectionIDs = append(receipt.SectionIDs, uuid.New().String())
		for range sec.Lessons {
			receipt.LessonIDs = append(receipt.LessonIDs, uuid.New().String())
		}
	}

	m.mu.Lock()
	m.outlines[sessionID] = outline
	m.receipts[sessionID] = receipt
	m.mu.Unlock()
	return receipt, nil
}

// Get returns the stored outline and receipt for a session.
func (m *MemoryMaterializer) Get(sessionID string) (Outline, *Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	outline, ok := m.outlines[sessionID]
	if !ok {
		return Outline{}, nil, ErrNotFound
	}
	return outline, m.receipts[sessionID], nil
}

// Len reports how many sessions have been materialized.
func (m *MemoryMaterializer) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.outlines)
}
