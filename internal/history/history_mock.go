package history

import (
	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/mock"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetHistoryStore implements the StoreManager interface.
func (m *MockStoreManager) GetHistoryStore() contract.HistoryStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.HistoryStore)
	return store
}

// MockHistoryStore is a mock implementation of HistoryStore for testing.
type MockHistoryStore struct {
	mock.Mock
}

var _ contract.HistoryStore = &MockHistoryStore{} // Compile-time check

// RecordReport implements the HistoryStore interface.
func (m *MockHistoryStore) RecordReport(report *schema.HealthReport) error {
	args := m.Called(report)
	return args.Error(0)
}

// LatestReport implements the HistoryStore interface.
func (m *MockHistoryStore) LatestReport(analyzedPath string) (*schema.HealthReport, error) {
	args := m.Called(analyzedPath)
	report, _ := args.Get(0).(*schema.HealthReport)
	return report, args.Error(1)
}

// GetStatus implements the HistoryStore interface.
func (m *MockHistoryStore) GetStatus() (schema.HistoryStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.HistoryStatus), args.Error(1)
}

// GetAllRuns implements the HistoryStore interface.
func (m *MockHistoryStore) GetAllRuns() ([]schema.HealthRunRecord, error) {
	args := m.Called()
	runs, _ := args.Get(0).([]schema.HealthRunRecord)
	return runs, args.Error(1)
}

// GetAllFindings implements the HistoryStore interface.
func (m *MockHistoryStore) GetAllFindings() ([]schema.FindingRecord, error) {
	args := m.Called()
	findings, _ := args.Get(0).([]schema.FindingRecord)
	return findings, args.Error(1)
}

// Close implements the HistoryStore interface.
func (m *MockHistoryStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
