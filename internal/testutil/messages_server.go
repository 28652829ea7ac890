// Package testutil holds test doubles shared across packages.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MessagesPath is the Anthropic Messages API path.
const MessagesPath = "/v1/messages"

// MockResponse is one scripted reply.
type MockResponse struct {
	StatusCode int
	Body       any
	Headers    map[string]string
}

// RecordedRequest is a request the server received.
type RecordedRequest struct {
	Header http.Header
	Body   []byte
}

// MessagesServer simulates the Anthropic Messages API. Scripted responses
// are served in order; the last one repeats once the script runs out.
type MessagesServer struct {
	server *httptest.Server

	mu        sync.Mutex
	responses []MockResponse
	requests  []RecordedRequest
}

// NewMessagesServer starts a server replying with responses in order.
func NewMessagesServer(responses ...MockResponse) *MessagesServer {
	ms := &MessagesServer{responses: responses}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the server's base URL.
func (ms *MessagesServer) URL() string {
	return ms.server.URL
}

// Close shuts the server down.
func (ms *MessagesServer) Close() {
	ms.server.Close()
}

// Requests returns the requests received so far.
func (ms *MessagesServer) Requests() []RecordedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RecordedRequest(nil), ms.requests...)
}

// RequestCount returns the number of requests received.
func (ms *MessagesServer) RequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.requests)
}

func (ms *MessagesServer) handler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != MessagesPath {
		http.NotFound(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	idx := len(ms.requests)
	ms.requests = append(ms.requests, RecordedRequest{Header: r.Header.Clone(), Body: body})
	if idx >= len(ms.responses) {
		idx = len(ms.responses) - 1
	}
	var response MockResponse
	if idx >= 0 {
		response = ms.responses[idx]
	}
	ms.mu.Unlock()

	if response.StatusCode == 0 {
		response.StatusCode = http.StatusOK
	}
	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.StatusCode)

	switch v := response.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

// MessagesResponse builds a Messages API success body.
func MessagesResponse(text, model string, inputTokens, outputTokens int) map[string]any {
	return map[string]any{
		"id":    "msg_test",
		"type":  "message",
		"role":  "assistant",
		"model": model,
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
		},
	}
}

// ErrorResponse builds a Messages API error body.
func ErrorResponse(errType, message string) map[string]any {
	return map[string]any{
		"type": "error",
		"error": map[string]any{
			"type":    errType,
			"message": message,
		},
	}
}
