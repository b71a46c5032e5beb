package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newAPIServer answers api.test with ok and hands every other method to fn.
func newAPIServer(t *testing.T, fn http.HandlerFunc) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api.test" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true}`))
			return
		}
		fn(w, r)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestNew(t *testing.T) {
	t.Parallel()

	client := New(WithBaseURL("http://example.com/"), WithRetryCount(5))

	if client == nil {
		t.Fatal("expected client to be created")
	}

	if client.baseURL != "http://example.com" {
		t.Errorf("expected baseURL=http://example.com, got %s", client.baseURL)
	}

	if client.options.retryCount != 5 {
		t.Errorf("expected retryCount=5, got %d", client.options.retryCount)
	}
}

func TestNew_DefaultBaseURL(t *testing.T) {
	t.Parallel()

	client := New()

	if client.baseURL != DefaultBaseURL {
		t.Errorf("expected baseURL=%s, got %s", DefaultBaseURL, client.baseURL)
	}
}

func TestConnect_EmptyURL(t *testing.T) {
	t.Parallel()

	client := New()
	client.baseURL = ""

	err := client.Connect(context.Background())

	if err == nil {
		t.Fatal("expected error for empty URL")
	}

	if err.Error() != "base URL must be set" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConnect_InvalidOptions(t *testing.T) {
	t.Parallel()

	client := New(WithBaseURL("http://example.com"))
	// Force invalid options by setting nil logger
	client.options.requestLogger = nil

	err := client.Connect(context.Background())

	if err == nil {
		t.Fatal("expected error for invalid options")
	}

	if !strings.Contains(err.Error(), "invalid options") {
		t.Errorf("expected error to contain 'invalid options', got: %v", err)
	}
}

func TestConnect_PingFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL), WithRetryCount(0))

	err := client.Connect(context.Background())

	if err == nil {
		t.Fatal("expected error for ping failure")
	}

	if !strings.Contains(err.Error(), "failed to ping Slack API") {
		t.Errorf("expected error to contain 'failed to ping Slack API', got: %v", err)
	}

	if !strings.Contains(err.Error(), "500") {
		t.Errorf("expected error to contain '500', got: %v", err)
	}
}

func TestConnect_Success(t *testing.T) {
	t.Parallel()

	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))

	err := client.Connect(context.Background())
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if requestedPath != "/api.test" {
		t.Errorf("expected path=/api.test, got %s", requestedPath)
	}
}

func TestConnect_OnlyOnce(t *testing.T) {
	t.Parallel()

	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		callCount++
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL))

	// First connect
	err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("first connect failed: %v", err)
	}

	// Second connect should be no-op
	err = client.Connect(context.Background())
	if err != nil {
		t.Fatalf("second connect failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected ping to be called once, got %d", callCount)
	}
}

func TestConnect_SetsHeaders(t *testing.T) {
	t.Parallel()

	var contentType, accept, customHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		accept = r.Header.Get("Accept")
		customHeader = r.Header.Get("X-Custom")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := New(WithBaseURL(server.URL), WithRequestHeader("X-Custom", "custom-value"))

	err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("expected Content-Type=application/json, got %s", contentType)
	}

	if accept != "application/json" {
		t.Errorf("expected Accept=application/json, got %s", accept)
	}

	if customHeader != "custom-value" {
		t.Errorf("expected X-Custom=custom-value, got %s", customHeader)
	}
}

func TestPost_SetsTokenAuth(t *testing.T) {
	t.Parallel()

	var authHeader string
	server := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	client := New(WithBaseURL(server.URL), WithAuthToken("xoxb-token"))

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if err := client.Post(context.Background(), "auth.test", nil, nil); err != nil {
		t.Fatalf("post failed: %v", err)
	}

	if authHeader != "Bearer xoxb-token" {
		t.Errorf("expected 'Bearer xoxb-token', got %s", authHeader)
	}
}

func TestPost_NilClient(t *testing.T) {
	t.Parallel()

	var client *Client

	err := client.Post(context.Background(), "chat.postMessage", nil, nil)

	if !errors.Is(err, ErrNilClient) {
		t.Errorf("expected ErrNilClient, got %v", err)
	}
}

func TestPost_NotConnected(t *testing.T) {
	t.Parallel()

	client := New(WithBaseURL("http://example.com"))

	err := client.Post(context.Background(), "chat.postMessage", nil, nil)

	if err == nil {
		t.Fatal("expected error for not connected client")
	}

	if err.Error() != "client not connected - call Connect() first" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPost_Success(t *testing.T) {
	t.Parallel()

	var capturedPath string
	var capturedBody []byte

	server := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	})

	client := New(WithBaseURL(server.URL), WithAuthToken("xoxb-token"))
	_ = client.Connect(context.Background())

	var result struct {
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	}

	err := client.Post(context.Background(), "chat.postMessage", map[string]string{
		"channel": "C123",
		"text":    "Hello",
	}, &result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if capturedPath != "/chat.postMessage" {
		t.Errorf("expected path=/chat.postMessage, got %s", capturedPath)
	}

	if !strings.Contains(string(capturedBody), `"text":"Hello"`) {
		t.Errorf("expected body to contain text, got: %s", capturedBody)
	}

	if result.Channel != "C123" || result.TS != "1700000000.000100" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestGet_QueryParams(t *testing.T) {
	t.Parallel()

	var capturedMethod, capturedQuery string

	server := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		capturedMethod = r.Method
		capturedQuery = r.URL.Query().Get("user")
		_, _ = w.Write([]byte(`{"ok":true,"user":{"id":"U123"}}`))
	})

	client := New(WithBaseURL(server.URL), WithAuthToken("xoxb-token"))
	_ = client.Connect(context.Background())

	var result struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}

	err := client.Get(context.Background(), "users.info", map[string]string{"user": "U123"}, &result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if capturedMethod != http.MethodGet {
		t.Errorf("expected GET, got %s", capturedMethod)
	}

	if capturedQuery != "U123" {
		t.Errorf("expected user=U123, got %s", capturedQuery)
	}

	if result.User.ID != "U123" {
		t.Errorf("expected user id U123, got %s", result.User.ID)
	}
}

func TestPost_APIError(t *testing.T) {
	t.Parallel()

	server := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	})

	client := New(WithBaseURL(server.URL), WithRetryCount(0))
	_ = client.Connect(context.Background())

	err := client.Post(context.Background(), "chat.postMessage", nil, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}

	if apiErr.Method != "chat.postMessage" || apiErr.Code != "channel_not_found" {
		t.Errorf("unexpected API error: %+v", apiErr)
	}
}

func TestPost_APIErrorWithoutCode(t *testing.T) {
	t.Parallel()

	server := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false}`))
	})

	client := New(WithBaseURL(server.URL), WithRetryCount(0))
	_ = client.Connect(context.Background())

	err := client.Post(context.Background(), "chat.postMessage", nil, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}

	if apiErr.Code != "unknown_error" {
		t.Errorf("expected code=unknown_error, got %s", apiErr.Code)
	}
}

func TestPost_RateLimited(t *testing.T) {
	t.Parallel()

	server := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := New(WithBaseURL(server.URL), WithRetryCount(0))
	_ = client.Connect(context.Background())

	err := client.Post(context.Background(), "chat.postMessage", nil, nil)

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected *RateLimitError, got %v", err)
	}

	if rateErr.RetryAfter != 7*time.Second {
		t.Errorf("expected RetryAfter=7s, got %v", rateErr.RetryAfter)
	}
}

func TestPost_RateLimitedWithoutHeader(t *testing.T) {
	t.Parallel()

	server := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := New(WithBaseURL(server.URL), WithRetryCount(0))
	_ = client.Connect(context.Background())

	err := client.Post(context.Background(), "chat.postMessage", nil, nil)

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected *RateLimitError, got %v", err)
	}

	if rateErr.RetryAfter != 60*time.Second {
		t.Errorf("expected RetryAfter=60s, got %v", rateErr.RetryAfter)
	}
}

func TestPost_HTTPError_PlainTextResponse(t *testing.T) {
	t.Parallel()

	server := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Bad Request"))
	})

	client := New(WithBaseURL(server.URL), WithRetryCount(0))
	_ = client.Connect(context.Background())

	err := client.Post(context.Background(), "chat.postMessage", nil, nil)

	if err == nil {
		t.Fatal("expected error for HTTP error")
	}

	if !strings.Contains(err.Error(), "400") {
		t.Errorf("expected error to contain '400', got: %v", err)
	}

	// Should fall back to raw body for non-JSON response
	if !strings.Contains(err.Error(), "Bad Request") {
		t.Errorf("expected error to contain 'Bad Request', got: %v", err)
	}
}

func TestPost_HTTPError_EmptyResponse(t *testing.T) {
	t.Parallel()

	server := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := New(WithBaseURL(server.URL), WithRetryCount(0))
	_ = client.Connect(context.Background())

	err := client.Post(context.Background(), "chat.postMessage", nil, nil)

	if err == nil {
		t.Fatal("expected error for HTTP error")
	}

	if !strings.Contains(err.Error(), "(empty error body)") {
		t.Errorf("expected error to contain '(empty error body)', got: %v", err)
	}
}

func TestPost_RequestError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	client := New(WithBaseURL(server.URL), WithRetryCount(0))
	_ = client.Connect(context.Background())

	// Close server to cause connection error on Post
	server.Close()

	err := client.Post(context.Background(), "chat.postMessage", nil, nil)

	if err == nil {
		t.Fatal("expected error for request failure")
	}

	if !strings.Contains(err.Error(), "POST") {
		t.Errorf("expected error to mention POST, got: %v", err)
	}
}

func TestConnect_RequestError(t *testing.T) {
	t.Parallel()

	// Use a URL that will fail to connect
	client := New(WithBaseURL("http://localhost:1"), WithRetryCount(0))

	err := client.Connect(context.Background())

	if err == nil {
		t.Fatal("expected error for connection failure")
	}

	if !strings.Contains(err.Error(), "failed to ping Slack API") {
		t.Errorf("expected error to contain 'failed to ping Slack API', got: %v", err)
	}
}

func TestClose_BeforeConnect(t *testing.T) {
	t.Parallel()

	if err := New().Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
