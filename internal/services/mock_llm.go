package services

import (
	"context"
	"sync"
)

// MockLLMService is a scripted LLMService for tests and offline play.
type MockLLMService struct {
	InitModelFunc func(ctx context.Context, modelName string) error
	GenerateFunc  func(ctx context.Context, req Request) (string, error)

	// Call records for assertions.
	InitModelCalls []string
	GenerateCalls  []Request

	mu sync.Mutex
}

// mockNarration is the canned continuation used when no GenerateFunc
// is scripted.
const mockNarration = "The story continues with an unexpected turn of events. Something stirs just out of sight, waiting for your next move."

func NewMockLLMService() *MockLLMService {
	return &MockLLMService{
		InitModelCalls: make([]string, 0),
		GenerateCalls:  make([]Request, 0),
	}
}

func (m *MockLLMService) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)
	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

func (m *MockLLMService) Generate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateCalls = append(m.GenerateCalls, req)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return mockNarration, nil
}

// CallCount returns how many Generate calls have been made.
func (m *MockLLMService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GenerateCalls)
}
