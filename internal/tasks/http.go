package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	vajerrors "vajraedge/internal/errors"
	"vajraedge/internal/types"
)

const (
	defaultHTTPTimeoutMs = 5000
	minHTTPTimeoutMs     = 100
	maxHTTPTimeoutMs     = 60_000
)

// httpFactory constructs httpTasks sharing one *http.Client, reused across
// invocations and opaque to callers — client reuse is an implementation
// detail of this task type, not something the Task interface exposes.
type httpFactory struct {
	client      *http.Client
	url         string
	method      string
	headers     map[string]string
	body        string
	contentType string
}

// newHTTPFactory returns a FactoryConstructor for the HTTP_GET, HTTP_POST
// and generic HTTP task types. defaultMethod is "" for the generic HTTP
// type, which then takes its method from params (defaulting to GET).
func newHTTPFactory(defaultMethod string) FactoryConstructor {
	return func(params map[string]string) (Factory, error) {
		rawURL, ok := params["url"]
		if !ok || strings.TrimSpace(rawURL) == "" {
			return nil, vajerrors.Validation("http task requires a url parameter")
		}
		parsed, err := url.ParseRequestURI(rawURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return nil, vajerrors.Validation("http task url must be a valid http(s) URL")
		}

		method := defaultMethod
		if m, ok := params["method"]; ok && m != "" {
			method = strings.ToUpper(m)
		}
		if method == "" {
			method = http.MethodGet
		}
		switch method {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		default:
			return nil, vajerrors.Validation("http task method must be one of GET, POST, PUT, DELETE")
		}

		timeoutMs := defaultHTTPTimeoutMs
		if raw, ok := params["timeout"]; ok && raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < minHTTPTimeoutMs || v > maxHTTPTimeoutMs {
				return nil, vajerrors.Validation("http task timeout must be an integer in [100, 60000] ms")
			}
			timeoutMs = v
		}

		headers := map[string]string{}
		if raw, ok := params["headers"]; ok && raw != "" {
			if err := json.Unmarshal([]byte(raw), &headers); err != nil {
				return nil, vajerrors.Validation("http task headers must be a JSON object")
			}
		}

		contentType := params["contentType"]
		if contentType == "" {
			contentType = "application/json"
		}

		return &httpFactory{
			client: &http.Client{
				Timeout: time.Duration(timeoutMs) * time.Millisecond,
			},
			url:         rawURL,
			method:      method,
			headers:     headers,
			body:        params["body"],
			contentType: contentType,
		}, nil
	}
}

// New implements Factory.
func (f *httpFactory) New() Task {
	return &httpTask{factory: f}
}

type httpTask struct {
	factory *httpFactory
}

// Execute implements Task.
func (t *httpTask) Execute(ctx context.Context, taskID uint64) (types.TaskResult, error) {
	f := t.factory

	var bodyReader io.Reader
	if f.body != "" {
		bodyReader = bytes.NewBufferString(f.body)
	}

	req, err := http.NewRequestWithContext(ctx, f.method, f.url, bodyReader)
	if err != nil {
		return types.TaskResult{TaskID: taskID, Success: false, ErrorKind: "invalid-request"}, nil
	}
	if f.body != "" {
		req.Header.Set("Content-Type", f.contentType)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		return types.TaskResult{
			TaskID:       taskID,
			Success:      false,
			LatencyNanos: uint64(latency.Nanoseconds()),
			ErrorKind:    classifyHTTPError(err),
		}, nil
	}
	defer resp.Body.Close()

	n, _ := io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return types.TaskResult{
			TaskID:         taskID,
			Success:        true,
			LatencyNanos:   uint64(latency.Nanoseconds()),
			BytesProcessed: uint64(n),
		}, nil
	}

	return types.TaskResult{
		TaskID:         taskID,
		Success:        false,
		LatencyNanos:   uint64(latency.Nanoseconds()),
		ErrorKind:      httpStatusBucket(resp.StatusCode),
		BytesProcessed: uint64(n),
	}, nil
}

// classifyHTTPError maps a net/http client error into a small-cardinality
// error kind for aggregation.
func classifyHTTPError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if strings.Contains(opErr.Error(), "refused") {
			return "refused"
		}
	}
	if strings.Contains(err.Error(), "refused") {
		return "refused"
	}
	if strings.Contains(err.Error(), "invalid") {
		return "invalid-response"
	}
	return "unknown"
}

// httpStatusBucket groups a non-2xx status code into a stable kind.
func httpStatusBucket(status int) string {
	switch {
	case status >= 300 && status < 400:
		return "redirect-3xx"
	case status >= 400 && status < 500:
		return "client-error-4xx"
	case status >= 500:
		return "server-error-5xx"
	default:
		return "unknown"
	}
}
