package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/schema"
)

const (
	// DefaultHTTPTimeout applies when a request sets no timeout.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultUserAgent is sent when the request headers carry none.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	maxResponseBytes = 10 << 20
)

// HTTPInput is the input of the http tool.
type HTTPInput struct {
	Method  string            `json:"method,omitempty" jsonschema_description:"HTTP method (GET, POST, PUT, DELETE, etc.), default GET"`
	URL     string            `json:"url" jsonschema:"required" jsonschema_description:"Full URL to call"`
	Headers map[string]string `json:"headers,omitempty" jsonschema_description:"Optional HTTP headers"`
	Body    map[string]any    `json:"body,omitempty" jsonschema_description:"Optional JSON request body (for POST, PUT, PATCH)"`
	Timeout int               `json:"timeout,omitempty" jsonschema_description:"Request timeout in seconds, default 30"`
}

var httpSchema = schema.MustFromStruct(HTTPInput{})

// HTTPConfig configures the http tool.
type HTTPConfig struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

type httpTool struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewHTTPTool creates the http tool.
func NewHTTPTool(cfg HTTPConfig) *FuncTool {
	h := &httpTool{
		client:    cfg.Client,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
	if h.client == nil {
		h.client = &http.Client{}
	}
	if h.userAgent == "" {
		h.userAgent = DefaultUserAgent
	}
	if h.timeout <= 0 {
		h.timeout = DefaultHTTPTimeout
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return NewFuncTool(goalrunner.ToolHTTP, httpSchema, h.execute,
		WithDescription("Make HTTP requests to external APIs and URLs"),
		WithCategory("Web"),
	)
}

func (h *httpTool) execute(ctx context.Context, raw map[string]any) (goalrunner.ToolOutput, error) {
	var in HTTPInput
	if err := schema.Decode(NormalizeHTTPInput(raw), &in); err != nil {
		return failedHTTP(err), nil
	}
	method := in.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := h.timeout
	if in.Timeout > 0 {
		timeout = time.Duration(in.Timeout) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	sendBody := in.Body != nil && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch)
	if sendBody {
		encoded, err := json.Marshal(in.Body)
		if err != nil {
			return failedHTTP(err), nil
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, in.URL, body)
	if err != nil {
		return failedHTTP(err), nil
	}
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	if sendBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	h.logger.Debug("http request", "method", method, "url", in.URL)
	resp, err := h.client.Do(req)
	if err != nil {
		return failedHTTP(err), nil
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failedHTTP(err), nil
	}
	decoded := decodeBody(payload)

	headers := make(map[string]any, len(resp.Header))
	for k, v := range resp.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	result := map[string]any{
		"status_code": resp.StatusCode,
		"body":        decoded,
		"headers":     headers,
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		h.logger.Debug("http request succeeded", "status_code", resp.StatusCode)
		return goalrunner.ToolOutput{Success: true, Result: result}, nil
	}
	msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bodyText(decoded))
	h.logger.Warn("http request returned error status", "status_code", resp.StatusCode, "url", in.URL)
	return goalrunner.ToolOutput{Success: false, Result: result, Error: msg}, nil
}

// NormalizeHTTPInput returns a copy of raw with empty body, headers and
// method dropped, the method upper-cased, and a string timeout coerced to
// seconds. Unparseable timeouts fall back to the default.
func NormalizeHTTPInput(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for _, field := range []string{"body", "headers"} {
		if v, ok := out[field]; ok && !schema.HasValue(v) {
			delete(out, field)
		}
	}
	if m, ok := out["method"].(string); ok {
		if m = strings.TrimSpace(m); m == "" {
			delete(out, "method")
		} else {
			out["method"] = strings.ToUpper(m)
		}
	}
	if s, ok := out["timeout"].(string); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			out["timeout"] = n
		} else {
			delete(out, "timeout")
		}
	}
	return out
}

func decodeBody(payload []byte) any {
	var v any
	if err := json.Unmarshal(payload, &v); err == nil {
		return v
	}
	return string(payload)
}

func bodyText(body any) string {
	if s, ok := body.(string); ok {
		return s
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprintf("%v", body)
	}
	return string(encoded)
}

func failedHTTP(err error) goalrunner.ToolOutput {
	return goalrunner.ToolOutput{Success: false, Error: "HTTP request failed: " + err.Error()}
}
