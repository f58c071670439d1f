package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"evdash/internal/dataprocessing"
	"evdash/pkg/contracts/domain"
	"evdash/pkg/contracts/events"
)

// MockWebSocketHub is a mock for the Broadcaster and ClientCounter
// interfaces
type MockWebSocketHub struct {
	mock.Mock
}

func (m *MockWebSocketHub) Broadcast(messageType events.MessageType, data interface{}) {
	m.Called(messageType, data)
}

func (m *MockWebSocketHub) ClientCount() int {
	args := m.Called()
	return args.Int(0)
}

// fakeSource is an in-memory source whose version is set by the test
type fakeSource struct {
	mu         sync.Mutex
	version    string
	versionErr error
	table      *domain.Table
	loadErr    error
	loads      int
}

func newFakeSource(version string, rows ...[]string) *fakeSource {
	header := append([]string{}, domain.RequiredColumns...)
	return &fakeSource{
		version: version,
		table:   dataprocessing.TableFromRows(append([][]string{header}, rows...)),
	}
}

func (s *fakeSource) Load(ctx context.Context) (*domain.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.table, nil
}

func (s *fakeSource) Version(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, s.versionErr
}

func (s *fakeSource) Describe() string {
	return "fake:rebates"
}

func (s *fakeSource) setVersion(v string) {
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
}

func (s *fakeSource) setLoadErr(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

func (s *fakeSource) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}
