// Package mocks provides test doubles for the edgar client.
package mocks

import (
	"context"

	edgar "github.com/sells-group/research-mcp/pkg/edgar"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// LookupCIK provides a mock function with given fields: ctx, ticker
func (_m *MockClient) LookupCIK(ctx context.Context, ticker string) (int, error) {
	ret := _m.Called(ctx, ticker)

	if len(ret) == 0 {
		panic("no return value specified for LookupCIK")
	}

	var r0 int
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (int, error)); ok {
		return rf(ctx, ticker)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) int); ok {
		r0 = rf(ctx, ticker)
	} else {
		r0 = ret.Get(0).(int)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, ticker)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Submissions provides a mock function with given fields: ctx, cik
func (_m *MockClient) Submissions(ctx context.Context, cik int) (*edgar.Submissions, error) {
	ret := _m.Called(ctx, cik)

	if len(ret) == 0 {
		panic("no return value specified for Submissions")
	}

	var r0 *edgar.Submissions
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int) (*edgar.Submissions, error)); ok {
		return rf(ctx, cik)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int) *edgar.Submissions); ok {
		r0 = rf(ctx, cik)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*edgar.Submissions)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, int) error); ok {
		r1 = rf(ctx, cik)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
