package generate

import "context"

// MockGenerator is a test double for Generator.
type MockGenerator struct {
	ProviderName string
	GenerateFunc func(ctx context.Context, req Request) (*Result, error)
}

func (m *MockGenerator) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &Result{Content: "mock content"}, nil
}
