package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/checker"
	"github.com/pulsewatch/pulsewatch/internal/models"
)

func seedLogs(n int, status string) []models.CheckLogEntry {
	logs := make([]models.CheckLogEntry, n)
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := range logs {
		logs[i] = models.CheckLogEntry{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Status:    status,
			LatencyMs: 10,
		}
	}
	return logs
}

func TestRecordSuccessUpdatesRunState(t *testing.T) {
	monitor := testMonitor("m1", "u1", 5)
	st := newFakeStore(monitor)
	recorder := NewRecorder(st, newFakeResolver(), zap.NewNop())

	now := time.Now()
	outcome := checker.Outcome{Success: true, LatencyMs: 42, Message: "ok"}
	if err := recorder.Record(context.Background(), monitor, outcome, now); err != nil {
		t.Fatalf("record: %v", err)
	}

	if monitor.LastStatus != models.StatusSuccess {
		t.Fatalf("last status = %q", monitor.LastStatus)
	}
	if monitor.LastChecked == nil || !monitor.LastChecked.Equal(now) {
		t.Fatalf("last checked = %v", monitor.LastChecked)
	}
	wantNext := now.Add(4 * time.Minute)
	if monitor.NextDue == nil || !monitor.NextDue.Equal(wantNext) {
		t.Fatalf("next due = %v, want %v (interval-1 minutes)", monitor.NextDue, wantNext)
	}
	if len(monitor.Logs) != 1 {
		t.Fatalf("log count = %d", len(monitor.Logs))
	}
	if monitor.Uptime != 100.0 {
		t.Fatalf("uptime = %v", monitor.Uptime)
	}
	if st.saveCount() != 1 {
		t.Fatalf("save count = %d, want a single atomic write", st.saveCount())
	}
}

func TestRecordFailureStillPersists(t *testing.T) {
	monitor := testMonitor("m1", "u1", 3)
	st := newFakeStore(monitor)
	recorder := NewRecorder(st, newFakeResolver(), zap.NewNop())

	now := time.Now()
	outcome := checker.Outcome{LatencyMs: 7, Message: "connection refused"}
	if err := recorder.Record(context.Background(), monitor, outcome, now); err != nil {
		t.Fatalf("record: %v", err)
	}

	if monitor.LastStatus != models.StatusError {
		t.Fatalf("last status = %q", monitor.LastStatus)
	}
	if monitor.NextDue == nil || !monitor.NextDue.After(now) {
		t.Fatal("failed check must still advance next due time")
	}
	if monitor.Uptime != 0.0 {
		t.Fatalf("uptime = %v", monitor.Uptime)
	}
}

func TestRecordAppliesFreeTierRetention(t *testing.T) {
	monitor := testMonitor("m1", "u1", 5)
	monitor.Logs = seedLogs(110, models.StatusSuccess)
	oldest := monitor.Logs[0].Timestamp
	st := newFakeStore(monitor)
	recorder := NewRecorder(st, newFakeResolver(), zap.NewNop())

	outcome := checker.Outcome{Success: true, LatencyMs: 5}
	if err := recorder.Record(context.Background(), monitor, outcome, time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(monitor.Logs) != models.RetentionFree {
		t.Fatalf("log count = %d, want %d", len(monitor.Logs), models.RetentionFree)
	}
	// Newest entries kept: the just-recorded entry is last, the seeded
	// oldest entries are gone.
	if monitor.Logs[0].Timestamp.Equal(oldest) {
		t.Fatal("oldest entry should have been dropped first")
	}
	last := monitor.Logs[len(monitor.Logs)-1]
	for _, entry := range monitor.Logs {
		if entry.Timestamp.After(last.Timestamp) {
			t.Fatal("retained entries are not the most recent ones")
		}
	}
}

func TestRecordRespectsPremiumRetention(t *testing.T) {
	monitor := testMonitor("m1", "u-premium", 5)
	monitor.Logs = seedLogs(510, models.StatusSuccess)
	st := newFakeStore(monitor)
	resolver := newFakeResolver()
	resolver.set("u-premium", models.Entitlement{Active: true, Plan: models.PlanPremium})
	recorder := NewRecorder(st, resolver, zap.NewNop())

	if err := recorder.Record(context.Background(), monitor, checker.Outcome{Success: true}, time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(monitor.Logs) != models.RetentionPremium {
		t.Fatalf("log count = %d, want %d", len(monitor.Logs), models.RetentionPremium)
	}
}

func TestRecordResolverFailureFallsBackToFreeTier(t *testing.T) {
	monitor := testMonitor("m1", "u1", 5)
	monitor.Logs = seedLogs(200, models.StatusSuccess)
	st := newFakeStore(monitor)
	resolver := newFakeResolver()
	resolver.err = errors.New("billing service down")
	recorder := NewRecorder(st, resolver, zap.NewNop())

	if err := recorder.Record(context.Background(), monitor, checker.Outcome{Success: true}, time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(monitor.Logs) != models.RetentionFree {
		t.Fatalf("log count = %d, want free-tier fallback %d", len(monitor.Logs), models.RetentionFree)
	}
}

func TestRecordSurfacesPersistenceFailure(t *testing.T) {
	monitor := testMonitor("m1", "u1", 5)
	st := newFakeStore(monitor)
	st.saveErr = errors.New("write rejected")
	recorder := NewRecorder(st, newFakeResolver(), zap.NewNop())

	err := recorder.Record(context.Background(), monitor, checker.Outcome{Success: true}, time.Now())
	if err == nil {
		t.Fatal("expected persistence error to surface")
	}
}

func TestUptimePercentOverRetainedWindow(t *testing.T) {
	logs := append(seedLogs(2, models.StatusSuccess), seedLogs(1, models.StatusError)...)
	if got := UptimePercent(logs); got != 66.7 {
		t.Fatalf("uptime = %v, want 66.7", got)
	}

	if got := UptimePercent(nil); got != 0 {
		t.Fatalf("uptime of empty window = %v", got)
	}

	if got := UptimePercent(seedLogs(3, models.StatusSuccess)); got != 100.0 {
		t.Fatalf("uptime = %v, want 100", got)
	}
}

func TestTruncateLogsKeepsNewest(t *testing.T) {
	logs := seedLogs(10, models.StatusSuccess)
	kept := TruncateLogs(logs, 4)
	if len(kept) != 4 {
		t.Fatalf("kept %d entries", len(kept))
	}
	if !kept[0].Timestamp.Equal(logs[6].Timestamp) {
		t.Fatal("expected the newest 4 entries to be kept")
	}

	if got := TruncateLogs(logs, 20); len(got) != 10 {
		t.Fatal("truncation below cap should be a no-op")
	}
}
