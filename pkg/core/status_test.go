package core

import "testing"

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{OutcomePending, "pending"},
		{OutcomeStarted, "started"},
		{OutcomePassed, "passed"},
		{OutcomeFailed, "failed"},
		{OutcomeSkipped, "skipped"},
		{Outcome(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.o, got, tt.want)
		}
	}
}

func TestOutcome_IsTerminal(t *testing.T) {
	terminal := map[Outcome]bool{
		OutcomePending: false,
		OutcomeStarted: false,
		OutcomePassed:  true,
		OutcomeFailed:  true,
		OutcomeSkipped: true,
	}
	for o, want := range terminal {
		if got := o.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", o, got, want)
		}
	}
}

func TestErrorCategory(t *testing.T) {
	tests := []struct {
		c     ErrorCategory
		name  string
		fatal bool
	}{
		{ErrCategoryNone, "none", false},
		{ErrCategoryDataSource, "datasource", true},
		{ErrCategoryContext, "context", true},
		{ErrCategoryScenario, "scenario", false},
		{ErrCategoryCapture, "capture", false},
		{ErrCategoryConfig, "config", true},
		{ErrCategoryDriver, "driver", false},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		if got := tt.c.IsFatal(); got != tt.fatal {
			t.Errorf("%s.IsFatal() = %v, want %v", tt.name, got, tt.fatal)
		}
	}
}
