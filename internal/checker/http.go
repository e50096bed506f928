package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

const (
	httpTimeout = 60 * time.Second
	userAgent   = "Pulsewatch/1.0"

	// maxBodyBytes bounds how much of the response is read for
	// validation; storedBodyLimit bounds what ends up in the log entry.
	maxBodyBytes    = 512 * 1024
	storedBodyLimit = 1024
)

// HTTPChecker probes HTTP/HTTPS targets.
type HTTPChecker struct {
	client *http.Client
}

func init() {
	Register(NewHTTPChecker())
}

// NewHTTPChecker creates an HTTP checker with the fixed request timeout
func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{
		client: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

// Name returns the protocol name
func (h *HTTPChecker) Name() string {
	return models.TypeHTTP
}

// Validate validates the HTTP monitor configuration
func (h *HTTPChecker) Validate(monitor *models.Monitor) error {
	if monitor.URL == "" {
		return fmt.Errorf("URL is required for HTTP monitor")
	}

	if !strings.HasPrefix(monitor.URL, "http://") && !strings.HasPrefix(monitor.URL, "https://") {
		return fmt.Errorf("URL must start with http:// or https://")
	}

	switch monitor.Method {
	case "", http.MethodGet, http.MethodHead, http.MethodPost:
	default:
		return fmt.Errorf("unsupported HTTP method: %s", monitor.Method)
	}

	if monitor.ValidationRule != "" {
		switch monitor.ValidationRule {
		case "contains", "equals", "startsWith", "endsWith", "regex":
		default:
			return fmt.Errorf("unknown validation rule: %s", monitor.ValidationRule)
		}
	}

	return nil
}

// Check performs the HTTP check. Transport success (status in [200,400))
// and response validation are independent axes; both must pass.
func (h *HTTPChecker) Check(ctx context.Context, monitor *models.Monitor) Outcome {
	method := monitor.Method
	if method == "" {
		method = http.MethodGet
	}

	var reqBody io.Reader
	if method == http.MethodPost && monitor.Body != "" {
		// The stored body must be valid JSON; a malformed body is a
		// check failure, not a crash.
		var parsed any
		if err := json.Unmarshal([]byte(monitor.Body), &parsed); err != nil {
			return Outcome{Message: fmt.Sprintf("invalid request body JSON: %v", err)}
		}
		reqBody = strings.NewReader(monitor.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, monitor.URL, reqBody)
	if err != nil {
		return Outcome{Message: fmt.Sprintf("failed to create request: %v", err)}
	}

	req.Header.Set("User-Agent", userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range monitor.Headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Outcome{LatencyMs: latency, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	body := string(bodyBytes)
	code := resp.StatusCode

	outcome := Outcome{
		LatencyMs:  latency,
		StatusCode: &code,
		RawBody:    truncate(body, storedBodyLimit),
	}

	if code < 200 || code >= 400 {
		outcome.Message = fmt.Sprintf("unexpected status code: %d", code)
		return outcome
	}

	if monitor.ValidationRule != "" {
		passed := matchBody(monitor.ValidationRule, monitor.ValidationValue, body)
		outcome.ValidationPassed = &passed
		if !passed {
			outcome.Message = fmt.Sprintf("response validation failed (%s %q)", monitor.ValidationRule, monitor.ValidationValue)
			return outcome
		}
	}

	outcome.Success = true
	outcome.Message = fmt.Sprintf("HTTP %d - %dms", code, latency)

	return outcome
}

// matchBody applies a response validation rule against the body text.
// An unparsable regex counts as a failed validation.
func matchBody(rule, value, body string) bool {
	switch rule {
	case "contains":
		return strings.Contains(body, value)
	case "equals":
		return body == value
	case "startsWith":
		return strings.HasPrefix(body, value)
	case "endsWith":
		return strings.HasSuffix(body, value)
	case "regex":
		re, err := regexp.Compile(value)
		if err != nil {
			return false
		}
		return re.MatchString(body)
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
