// Package testutil provides thread-safe fakes for the llm interfaces.
package testutil

import (
	"context"
	"sync"

	"karmaclaims-backend/llm"
)

// MockGenerator returns configured responses in sequence and records every request.
//
// Errs, when set, is consumed one entry per call before Responses. A nil entry
// in Errs falls through to the next response.
type MockGenerator struct {
	mu            sync.Mutex
	Responses     []*llm.Response
	Errs          []error
	Err           error // returned on every call, takes precedence
	requests      []llm.Request
	responseIndex int
	errIndex      int
}

// Generate implements llm.Generator
func (m *MockGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.Err != nil {
		return nil, m.Err
	}
	if m.errIndex < len(m.Errs) {
		err := m.Errs[m.errIndex]
		m.errIndex++
		if err != nil {
			return nil, err
		}
	}
	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}
	return &llm.Response{Text: "", Model: "test-model"}, nil
}

// CallCount returns the number of Generate calls
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received
func (m *MockGenerator) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// LastRequest returns the most recent request
func (m *MockGenerator) LastRequest() llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.Request{}
	}
	return m.requests[len(m.requests)-1]
}

// MockEmbedder returns a fixed vector or error
type MockEmbedder struct {
	mu     sync.Mutex
	Vector []float32
	Err    error
	Dims   int
	calls  []string
}

// Embed implements llm.Embedder
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, text)
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]float32(nil), m.Vector...), nil
}

// Dimensions implements llm.Embedder
func (m *MockEmbedder) Dimensions() int {
	if m.Dims > 0 {
		return m.Dims
	}
	return len(m.Vector)
}

// Inputs returns every text passed to Embed
func (m *MockEmbedder) Inputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
