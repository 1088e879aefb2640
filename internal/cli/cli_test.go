package cli

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/ritim-app/ritim/internal/app/engagement"
	"github.com/ritim-app/ritim/internal/domain"
)

// run executes the root command against a fresh data dir per test.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Flag variables are package state; reset them between invocations.
	userID = "tester"
	trackUndo, trackDone, trackTotal = false, 0, 0
	xpSource = engagement.SourceManual
	inboxLimit, inboxAck = 20, false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func setupHome(t *testing.T) {
	t.Helper()
	t.Setenv("RITIM_HOME", t.TempDir())
	t.Setenv("RITIM_CLOCK_TIMEZONE", "UTC")
	t.Setenv("RITIM_NOTIFY_QUIET_START", "00:00")
	t.Setenv("RITIM_NOTIFY_QUIET_END", "00:00")
	t.Setenv("RITIM_LOGGING_LEVEL", "error")
}

func TestTaskCommand_UnlocksFirstStep(t *testing.T) {
	setupHome(t)

	out, err := run(t, "task", "--done", "1", "--total", "5")
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if !strings.Contains(out, "First Step") {
		t.Errorf("expected First Step unlock, got:\n%s", out)
	}

	// Same day again: no second unlock.
	out, err = run(t, "task")
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if strings.Contains(out, "First Step") {
		t.Errorf("expected no re-award, got:\n%s", out)
	}
}

func TestXPCommands(t *testing.T) {
	setupHome(t)

	out, err := run(t, "xp", "award", "1000")
	if err != nil {
		t.Fatalf("xp award: %v", err)
	}
	if !strings.Contains(out, "LEVEL UP") {
		t.Errorf("expected level up, got:\n%s", out)
	}

	_, err = run(t, "xp", "spend", "999999")
	if err == nil {
		t.Fatal("expected insufficient XP error")
	}
	if got := describe(err); got != domain.ReasonInsufficientXP.Message() {
		t.Errorf("expected %q, got %q", domain.ReasonInsufficientXP.Message(), got)
	}

	if _, err := run(t, "xp", "award", "lots"); err == nil || !strings.Contains(err.Error(), "not a whole number") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestWeekCommand(t *testing.T) {
	setupHome(t)

	out, err := run(t, "week", "85")
	if err != nil {
		t.Fatalf("week: %v", err)
	}
	if !strings.Contains(out, "Productive Week") {
		t.Errorf("expected Productive Week unlock, got:\n%s", out)
	}

	if _, err := run(t, "week", "140"); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestHabitCommand_RequiresID(t *testing.T) {
	setupHome(t)

	if _, err := run(t, "habit"); err == nil {
		t.Error("expected missing argument error")
	}
	out, err := run(t, "habit", "water")
	if err != nil {
		t.Fatalf("habit: %v", err)
	}
	if !strings.Contains(out, "habit 1") {
		t.Errorf("expected habit streak 1, got:\n%s", out)
	}
}

func TestStatusAndAchievements(t *testing.T) {
	setupHome(t)

	if _, err := run(t, "pomodoro"); err != nil {
		t.Fatalf("pomodoro: %v", err)
	}

	out, err := run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"tester", "Streaks", "Weekly pass"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, "achievements")
	if err != nil {
		t.Fatalf("achievements: %v", err)
	}
	if !strings.Contains(out, "Pomodoro Master") || !strings.Contains(out, "1/25") {
		t.Errorf("expected pomodoro progress 1/25, got:\n%s", out)
	}
}

func TestPassStatus(t *testing.T) {
	setupHome(t)

	out, err := run(t, "pass")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if !strings.Contains(out, "Use:") || !strings.Contains(out, "Undo:") {
		t.Errorf("expected use and undo lines, got:\n%s", out)
	}

	// Nothing to undo on a fresh user, whatever the weekday.
	if _, err := run(t, "pass", "undo"); describe(err) != domain.ReasonNotUsed.Message() {
		t.Errorf("expected not_used, got %v", err)
	}
}

func TestInbox(t *testing.T) {
	setupHome(t)

	if _, err := run(t, "task"); err != nil {
		t.Fatalf("task: %v", err)
	}
	out, err := run(t, "inbox", "--ack")
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if strings.Contains(out, "No new notifications") {
		t.Errorf("expected the unlock notification, got:\n%s", out)
	}

	out, err = run(t, "inbox")
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if !strings.Contains(out, "No new notifications") {
		t.Errorf("expected empty inbox after --ack, got:\n%s", out)
	}
}

func TestDescribe(t *testing.T) {
	wrapped := fmt.Errorf("use pass: %w", domain.ReasonWeekendNotAllowed)
	if got := describe(wrapped); got != domain.ReasonWeekendNotAllowed.Message() {
		t.Errorf("expected reason message, got %q", got)
	}
	if got := describe(fmt.Errorf("boom")); got != "boom" {
		t.Errorf("expected plain error text, got %q", got)
	}
}

func TestRenderBar(t *testing.T) {
	if got := renderBar(0); !strings.Contains(got, strings.Repeat(".", barWidth)) {
		t.Errorf("expected empty bar, got %q", got)
	}
	if got := renderBar(150); !strings.Contains(got, strings.Repeat("=", barWidth)) || !strings.Contains(got, "100%") {
		t.Errorf("expected full bar clamped to 100%%, got %q", got)
	}
	if got := renderBar(50); !strings.Contains(got, ">") {
		t.Errorf("expected a head marker at 50%%, got %q", got)
	}
}
