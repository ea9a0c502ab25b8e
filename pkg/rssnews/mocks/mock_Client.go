// Package mocks provides test doubles for the rssnews client.
package mocks

import (
	"context"
	"time"

	rssnews "github.com/sells-group/research-mcp/pkg/rssnews"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Headlines provides a mock function with given fields: ctx, ticker, since
func (_m *MockClient) Headlines(ctx context.Context, ticker string, since time.Time) ([]rssnews.Article, error) {
	ret := _m.Called(ctx, ticker, since)

	if len(ret) == 0 {
		panic("no return value specified for Headlines")
	}

	var r0 []rssnews.Article
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Time) ([]rssnews.Article, error)); ok {
		return rf(ctx, ticker, since)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Time) []rssnews.Article); ok {
		r0 = rf(ctx, ticker, since)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]rssnews.Article)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, time.Time) error); ok {
		r1 = rf(ctx, ticker, since)
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
