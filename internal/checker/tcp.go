package checker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

const defaultTCPTimeout = 5 * time.Second

// TCPChecker checks whether a TCP port accepts connections
type TCPChecker struct{}

func init() {
	Register(&TCPChecker{})
}

func (t *TCPChecker) Name() string {
	return models.TypeTCP
}

func (t *TCPChecker) Validate(monitor *models.Monitor) error {
	if monitor.URL == "" {
		return fmt.Errorf("host is required")
	}

	if monitor.Port < 1 || monitor.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	return nil
}

// Check opens a TCP connection to host:port and reports the connect
// latency. Timeouts and refusals are the same outcome kind with
// different messages.
func (t *TCPChecker) Check(ctx context.Context, monitor *models.Monitor) Outcome {
	host := StripScheme(monitor.URL)
	if host == "" {
		return Outcome{Message: "no host specified"}
	}

	timeout := time.Duration(monitor.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTCPTimeout
	}

	address := net.JoinHostPort(host, strconv.Itoa(monitor.Port))
	dialer := &net.Dialer{Timeout: timeout}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		msg := fmt.Sprintf("connection failed: %v", err)
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			msg = fmt.Sprintf("connection timed out after %s", timeout)
		}
		return Outcome{LatencyMs: latency, Message: msg}
	}
	defer conn.Close()

	return Outcome{
		Success:   true,
		LatencyMs: latency,
		Message:   fmt.Sprintf("port %d is open - %dms", monitor.Port, latency),
	}
}
