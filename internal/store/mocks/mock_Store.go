// Package mocks provides test doubles for the run store.
package mocks

import (
	"context"

	model "github.com/sells-group/research-mcp/internal/model"
	store "github.com/sells-group/research-mcp/internal/store"
	mock "github.com/stretchr/testify/mock"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// SaveStatus provides a mock function with given fields: ctx, st
func (_m *MockStore) SaveStatus(ctx context.Context, st model.WorkflowStatus) error {
	ret := _m.Called(ctx, st)

	if len(ret) == 0 {
		panic("no return value specified for SaveStatus")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, model.WorkflowStatus) error); ok {
		r0 = rf(ctx, st)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetStatus provides a mock function with given fields: ctx, threadID
func (_m *MockStore) GetStatus(ctx context.Context, threadID string) (*model.WorkflowStatus, error) {
	ret := _m.Called(ctx, threadID)

	if len(ret) == 0 {
		panic("no return value specified for GetStatus")
	}

	var r0 *model.WorkflowStatus
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.WorkflowStatus, error)); ok {
		return rf(ctx, threadID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.WorkflowStatus); ok {
		r0 = rf(ctx, threadID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.WorkflowStatus)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, threadID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListStatuses provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListStatuses(ctx context.Context, filter store.RunFilter) ([]model.WorkflowStatus, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListStatuses")
	}

	var r0 []model.WorkflowStatus
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, store.RunFilter) ([]model.WorkflowStatus, error)); ok {
		return rf(ctx, filter)
	}
	if rf, ok := ret.Get(0).(func(context.Context, store.RunFilter) []model.WorkflowStatus); ok {
		r0 = rf(ctx, filter)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.WorkflowStatus)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, store.RunFilter) error); ok {
		r1 = rf(ctx, filter)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// SaveRecord provides a mock function with given fields: ctx, rec
func (_m *MockStore) SaveRecord(ctx context.Context, rec *model.ResearchRecord) error {
	ret := _m.Called(ctx, rec)

	if len(ret) == 0 {
		panic("no return value specified for SaveRecord")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.ResearchRecord) error); ok {
		r0 = rf(ctx, rec)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetRecord provides a mock function with given fields: ctx, threadID
func (_m *MockStore) GetRecord(ctx context.Context, threadID string) (*model.ResearchRecord, error) {
	ret := _m.Called(ctx, threadID)

	if len(ret) == 0 {
		panic("no return value specified for GetRecord")
	}

	var r0 *model.ResearchRecord
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.ResearchRecord, error)); ok {
		return rf(ctx, threadID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.ResearchRecord); ok {
		r0 = rf(ctx, threadID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.ResearchRecord)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, threadID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockStore creates a new instance of MockStore. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock := &MockStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
