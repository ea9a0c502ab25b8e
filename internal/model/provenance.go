package model

import "time"

// Source identifies where an attributed value came from.
type Source string

const (
	SourceFinnhub   Source = "finnhub"
	SourceSECEdgar  Source = "sec_edgar"
	SourceRSS       Source = "rss"
	SourceAnthropic Source = "anthropic"
	SourceAlgorithm Source = "algorithm"
	SourceMock      Source = "mock"
)

// Confidence is the coarse reliability grade attached to every value.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Attributed wraps a value with its provenance. Source and Confidence are
// always set, including when Value is nil.
type Attributed[T any] struct {
	Value      *T         `json:"value"`
	Source     Source     `json:"source"`
	Timestamp  time.Time  `json:"timestamp"`
	Confidence Confidence `json:"confidence"`
}

// Attr returns a populated attributed value.
func Attr[T any](v T, src Source, conf Confidence, ts time.Time) Attributed[T] {
	return Attributed[T]{Value: &v, Source: src, Timestamp: ts, Confidence: conf}
}

// Missing returns an attributed value with a null Value.
func Missing[T any](src Source, conf Confidence, ts time.Time) Attributed[T] {
	return Attributed[T]{Source: src, Timestamp: ts, Confidence: conf}
}

// Get returns the value and whether it is present.
func (a Attributed[T]) Get() (T, bool) {
	if a.Value == nil {
		var zero T
		return zero, false
	}
	return *a.Value, true
}

// Or returns the value, or def when it is absent.
func (a Attributed[T]) Or(def T) T {
	if a.Value == nil {
		return def
	}
	return *a.Value
}

// Present reports whether the value is non-null.
func (a Attributed[T]) Present() bool {
	return a.Value != nil
}

// Live reports whether the value is non-null and did not come from mock data.
func (a Attributed[T]) Live() bool {
	return a.Value != nil && a.Source != SourceMock
}

// IsMock reports whether the value was substituted from mock data.
func (a Attributed[T]) IsMock() bool {
	return a.Source == SourceMock
}

// Liveness is satisfied by every Attributed value.
type Liveness interface {
	Live() bool
}

// AnyLive reports whether at least one of the values is live.
func AnyLive(vals ...Liveness) bool {
	for _, v := range vals {
		if v.Live() {
			return true
		}
	}
	return false
}
