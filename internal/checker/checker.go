package checker

import (
	"context"
	"strings"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Outcome is the uniform result produced by every protocol checker.
type Outcome struct {
	Success          bool
	LatencyMs        int64
	StatusCode       *int
	Message          string
	RawBody          string
	ValidationPassed *bool
}

// Checker is implemented by each protocol strategy.
type Checker interface {
	// Name returns the protocol name (e.g. "http", "tcp", "icmp")
	Name() string

	// Check runs one probe against the monitor's target. Check failures
	// are reported in the Outcome, never as an error or panic.
	Check(ctx context.Context, monitor *models.Monitor) Outcome

	// Validate validates the monitor configuration
	Validate(monitor *models.Monitor) error
}

// Registry holds all registered checkers
var checkers = make(map[string]Checker)

// Register registers a checker
func Register(c Checker) {
	checkers[c.Name()] = c
}

// Lookup returns a checker by protocol name
func Lookup(name string) (Checker, bool) {
	c, ok := checkers[name]
	return c, ok
}

// StripScheme removes a leading http:// or https:// prefix and any path
// from a target. Monitor targets are stored URL-shaped regardless of
// protocol, so the TCP and ICMP checkers need the bare host.
func StripScheme(target string) string {
	target = strings.TrimPrefix(target, "https://")
	target = strings.TrimPrefix(target, "http://")
	if i := strings.IndexByte(target, '/'); i >= 0 {
		target = target[:i]
	}
	return target
}
