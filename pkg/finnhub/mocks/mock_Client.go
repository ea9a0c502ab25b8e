// Package mocks provides test doubles for the finnhub client.
package mocks

import (
	"context"
	"time"

	finnhub "github.com/sells-group/research-mcp/pkg/finnhub"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// CompanyProfile provides a mock function with given fields: ctx, symbol
func (_m *MockClient) CompanyProfile(ctx context.Context, symbol string) (*finnhub.Profile, error) {
	ret := _m.Called(ctx, symbol)

	if len(ret) == 0 {
		panic("no return value specified for CompanyProfile")
	}

	var r0 *finnhub.Profile
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*finnhub.Profile, error)); ok {
		return rf(ctx, symbol)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *finnhub.Profile); ok {
		r0 = rf(ctx, symbol)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*finnhub.Profile)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, symbol)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Quote provides a mock function with given fields: ctx, symbol
func (_m *MockClient) Quote(ctx context.Context, symbol string) (*finnhub.Quote, error) {
	ret := _m.Called(ctx, symbol)

	if len(ret) == 0 {
		panic("no return value specified for Quote")
	}

	var r0 *finnhub.Quote
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*finnhub.Quote, error)); ok {
		return rf(ctx, symbol)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *finnhub.Quote); ok {
		r0 = rf(ctx, symbol)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*finnhub.Quote)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, symbol)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CompanyNews provides a mock function with given fields: ctx, symbol, from, to
func (_m *MockClient) CompanyNews(ctx context.Context, symbol string, from time.Time, to time.Time) ([]finnhub.NewsArticle, error) {
	ret := _m.Called(ctx, symbol, from, to)

	if len(ret) == 0 {
		panic("no return value specified for CompanyNews")
	}

	var r0 []finnhub.NewsArticle
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Time, time.Time) ([]finnhub.NewsArticle, error)); ok {
		return rf(ctx, symbol, from, to)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Time, time.Time) []finnhub.NewsArticle); ok {
		r0 = rf(ctx, symbol, from, to)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]finnhub.NewsArticle)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, time.Time, time.Time) error); ok {
		r1 = rf(ctx, symbol, from, to)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Recommendations provides a mock function with given fields: ctx, symbol
func (_m *MockClient) Recommendations(ctx context.Context, symbol string) ([]finnhub.Recommendation, error) {
	ret := _m.Called(ctx, symbol)

	if len(ret) == 0 {
		panic("no return value specified for Recommendations")
	}

	var r0 []finnhub.Recommendation
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]finnhub.Recommendation, error)); ok {
		return rf(ctx, symbol)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []finnhub.Recommendation); ok {
		r0 = rf(ctx, symbol)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]finnhub.Recommendation)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, symbol)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Earnings provides a mock function with given fields: ctx, symbol
func (_m *MockClient) Earnings(ctx context.Context, symbol string) ([]finnhub.EarningsSurprise, error) {
	ret := _m.Called(ctx, symbol)

	if len(ret) == 0 {
		panic("no return value specified for Earnings")
	}

	var r0 []finnhub.EarningsSurprise
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]finnhub.EarningsSurprise, error)); ok {
		return rf(ctx, symbol)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []finnhub.EarningsSurprise); ok {
		r0 = rf(ctx, symbol)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]finnhub.EarningsSurprise)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, symbol)
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
