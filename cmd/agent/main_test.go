package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"brightness-agent/internal/config"
)

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "Brightness Agent v"+Version) {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestRunRequiresPort(t *testing.T) {
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "none.yaml")
	if code := run([]string{"--config", missing}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "用法") {
		t.Fatalf("usage not printed: %q", stderr.String())
	}
}

func TestRunBadFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--nope"}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestSetupLoggerJSON(t *testing.T) {
	var out bytes.Buffer
	log := setupLogger(config.LogConfig{Level: "debug", Format: "json", Output: "stdout"}, &out)
	log.WithField("kind", "capture").Warn("x")

	var rec map[string]any
	if err := json.Unmarshal(out.Bytes(), &rec); err != nil {
		t.Fatalf("not json: %q", out.String())
	}
	if rec["kind"] != "capture" || rec["level"] != "warning" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestSetupLoggerBadLevelFallsBack(t *testing.T) {
	var out bytes.Buffer
	log := setupLogger(config.LogConfig{Level: "loud"}, &out)
	if log.GetLevel().String() != "info" {
		t.Fatalf("level = %s", log.GetLevel())
	}
}

type fakeMonitor struct {
	err      error
	deadline bool
}

func (m *fakeMonitor) Shutdown(ctx context.Context) error {
	_, m.deadline = ctx.Deadline()
	return m.err
}

func TestStopMonitorLogsFailure(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	mon := &fakeMonitor{err: errors.New("busy")}

	stopMonitor(mon, log, time.Second)
	if !mon.deadline {
		t.Fatalf("shutdown ctx has no deadline")
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel || !strings.Contains(entry.Message, "busy") {
		t.Fatalf("unexpected log entry: %+v", entry)
	}
}

func TestStopMonitorQuietOnSuccess(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	stopMonitor(&fakeMonitor{}, log, time.Second)
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("unexpected logs: %v", hook.AllEntries())
	}
}
