// Package testutil provides shared test doubles.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockHTTPDoer implements github.HTTPDoer for tests. Responses are keyed
// by "METHOD url"; unconfigured requests get a 404.
type MockHTTPDoer struct {
	responses map[string]stubResponse
	errors    map[string]error
	calls     []HTTPCall
	mu        sync.Mutex
}

type stubResponse struct {
	body       []byte
	statusCode int
}

// HTTPCall records a single request the mock served.
type HTTPCall struct {
	Method string
	URL    string
	Body   []byte
}

// NewMockHTTPDoer returns an empty mock.
func NewMockHTTPDoer() *MockHTTPDoer {
	return &MockHTTPDoer{
		responses: make(map[string]stubResponse),
		errors:    make(map[string]error),
	}
}

func requestKey(method, url string) string {
	return method + " " + url
}

// Do records the request and replays the configured response.
func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	m.calls = append(m.calls, HTTPCall{Method: req.Method, URL: req.URL.String(), Body: body})

	key := requestKey(req.Method, req.URL.String())
	if err, ok := m.errors[key]; ok {
		return nil, err
	}
	if stub, ok := m.responses[key]; ok {
		return &http.Response{
			StatusCode: stub.statusCode,
			Status:     fmt.Sprintf("%d %s", stub.statusCode, http.StatusText(stub.statusCode)),
			Body:       io.NopCloser(bytes.NewReader(stub.body)),
			Header:     make(http.Header),
		}, nil
	}

	return &http.Response{
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Body:       io.NopCloser(strings.NewReader(`{"message":"not found"}`)),
		Header:     make(http.Header),
	}, nil
}

// SetResponse configures a JSON response for a method and URL. The body
// may be a raw string (used verbatim) or any value to marshal.
func (m *MockHTTPDoer) SetResponse(method, url string, statusCode int, body any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var bodyBytes []byte
	switch v := body.(type) {
	case nil:
	case string:
		bodyBytes = []byte(v)
	default:
		var err error
		bodyBytes, err = json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("testutil: marshal stub body: %v", err))
		}
	}
	m.responses[requestKey(method, url)] = stubResponse{statusCode: statusCode, body: bodyBytes}
}

// SetError makes the mock fail a method and URL with err.
func (m *MockHTTPDoer) SetError(method, url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[requestKey(method, url)] = err
}

// Calls returns a copy of the recorded requests in order.
func (m *MockHTTPDoer) Calls() []HTTPCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]HTTPCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Reset drops all stubs and recorded calls.
func (m *MockHTTPDoer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = make(map[string]stubResponse)
	m.errors = make(map[string]error)
	m.calls = nil
}
