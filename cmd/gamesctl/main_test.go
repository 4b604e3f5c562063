package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CodeAndHammer/learngames/internal/config"
	"github.com/CodeAndHammer/learngames/internal/logger"
	"github.com/CodeAndHammer/learngames/internal/mathgame"
	models "github.com/CodeAndHammer/learngames/internal/models"
	"github.com/CodeAndHammer/learngames/internal/store"
	"github.com/CodeAndHammer/learngames/internal/testutil"
	"github.com/CodeAndHammer/learngames/internal/throttle"
)

type fixture struct {
	st    *store.Memory
	clock *testutil.FakeClock
	cfg   config.Config
}

func newFixture() *fixture {
	return &fixture{
		st:    store.NewMemory(),
		clock: testutil.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
		cfg: config.Config{
			DefaultProfile: "kid",
			DefaultPolicy:  throttle.DefaultPolicy(),
		},
	}
}

func (f *fixture) open() (*models.App, func(), error) {
	return models.NewApp(f.cfg, logger.Nop(), f.st, f.clock), func() {}, nil
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(f.open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLockStatusAndReset(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	th := throttle.New(throttle.Key("kid", "print"), throttle.DefaultPolicy(), f.st, f.clock, nil)
	for i := 0; i < 3; i++ {
		if _, err := th.RecordAction(ctx); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	out, err := f.run(t, "lock", "status", "--action", "print")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Count:    3/3") || !strings.Contains(out, "Locked:   yes") {
		t.Errorf("status output:\n%s", out)
	}

	if _, err := f.run(t, "lock", "reset", "--action", "print"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if th.IsLocked(ctx) {
		t.Errorf("lock still active after reset")
	}

	out, err = f.run(t, "lock", "status", "--action", "print")
	if err != nil || !strings.Contains(out, "Locked:   no") {
		t.Errorf("status after reset: %v\n%s", err, out)
	}
}

func TestLockStatusReconcilesElapsedLock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	th := throttle.New(throttle.Key("kid", "print"), throttle.DefaultPolicy(), f.st, f.clock, nil)
	for i := 0; i < 3; i++ {
		if _, err := th.RecordAction(ctx); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	f.clock.Advance(throttle.DefaultCooldown + time.Minute)

	out, err := f.run(t, "lock", "status", "--action", "print")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Count:    0/3") || !strings.Contains(out, "Locked:   no") {
		t.Errorf("status output:\n%s", out)
	}
	if snap := th.Snapshot(ctx); snap.Count != 0 || snap.LockedUntil != 0 {
		t.Errorf("record after status = %+v", snap)
	}
}

func TestLockRequiresAction(t *testing.T) {
	f := newFixture()
	if _, err := f.run(t, "lock", "status"); err == nil || !strings.Contains(err.Error(), "--action") {
		t.Errorf("err = %v", err)
	}
}

func TestInvalidProfile(t *testing.T) {
	f := newFixture()
	if _, err := f.run(t, "math", "stats", "--profile", "not valid"); err == nil {
		t.Errorf("expected error for invalid profile")
	}
}

func TestMathStatsAndProgressReset(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tr := mathgame.NewTracker(mathgame.Key("sibling"), f.st, nil, nil)
	for _, c := range []bool{true, true, true, false} {
		if _, err := tr.RecordAnswer(ctx, "1 + 2", c); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	out, err := f.run(t, "math", "stats", "--profile", "sibling")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "Accuracy:    75% (3/4)") || !strings.Contains(out, "Streak:      0 (best 3)") {
		t.Errorf("stats output:\n%s", out)
	}

	if _, err := f.run(t, "progress", "reset", "--profile", "sibling"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s := tr.Stats(ctx); s.TotalAttempts != 0 {
		t.Errorf("stats after reset = %+v", s)
	}
}

func TestReport(t *testing.T) {
	f := newFixture()
	path := filepath.Join(t.TempDir(), "kid.xlsx")
	out, err := f.run(t, "report", "--out", path, "--actions", "print,video")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output = %q", out)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("report file: %v", err)
	}

	if _, err := f.run(t, "report"); err == nil {
		t.Errorf("expected error without --out")
	}
}
