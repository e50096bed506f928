package checker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ping/ping"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

const (
	defaultPacketCount = 3
	defaultPingTimeout = 5 * time.Second
)

// ICMPChecker probes host reachability with ICMP echo requests
type ICMPChecker struct{}

func init() {
	Register(&ICMPChecker{})
}

func (p *ICMPChecker) Name() string {
	return models.TypeICMP
}

func (p *ICMPChecker) Validate(monitor *models.Monitor) error {
	if monitor.URL == "" {
		return fmt.Errorf("host is required")
	}

	if monitor.PacketCount < 0 || monitor.PacketCount > 100 {
		return fmt.Errorf("packet count must be between 1 and 100")
	}

	return nil
}

// Check sends the configured packet count and reports the average round
// trip time. An unreachable host is an error outcome, not an error.
func (p *ICMPChecker) Check(ctx context.Context, monitor *models.Monitor) Outcome {
	host := StripScheme(monitor.URL)
	if host == "" {
		return Outcome{Message: "no host specified"}
	}

	pinger, err := ping.NewPinger(host)
	if err != nil {
		return Outcome{Message: fmt.Sprintf("failed to create pinger: %v", err)}
	}

	count := monitor.PacketCount
	if count <= 0 {
		count = defaultPacketCount
	}
	timeout := time.Duration(monitor.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	pinger.Count = count
	pinger.Timeout = timeout
	// Unprivileged mode (UDP) so the engine does not need raw sockets
	pinger.SetPrivileged(false)

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case <-ctx.Done():
		pinger.Stop()
		return Outcome{Message: "ping cancelled"}
	case err := <-done:
		if err != nil {
			return Outcome{Message: fmt.Sprintf("ping failed: %v", err)}
		}
	}

	stats := pinger.Statistics()
	latency := stats.AvgRtt.Milliseconds()

	if stats.PacketsRecv == 0 {
		return Outcome{
			LatencyMs: latency,
			Message:   "host unreachable (100% packet loss)",
		}
	}

	return Outcome{
		Success:   true,
		LatencyMs: latency,
		Message:   fmt.Sprintf("ping ok - %dms avg (loss: %.1f%%)", latency, stats.PacketLoss),
	}
}
