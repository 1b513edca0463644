package lockout

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testPolicy() Policy {
	return Policy{MaxAttempts: 5, Duration: 15 * time.Minute}
}

func TestZeroStateNotLocked(t *testing.T) {
	var s State
	if s.IsLocked(testNow) {
		t.Fatal("zero state must not be locked")
	}
}

func TestOnFailureIncrementsWithoutLocking(t *testing.T) {
	p := testPolicy()
	var s State

	for i := 1; i < p.MaxAttempts; i++ {
		s = p.OnFailure(s, testNow)
		if s.FailedAttempts != i {
			t.Fatalf("after %d failures got counter %d", i, s.FailedAttempts)
		}
		if s.IsLocked(testNow) {
			t.Fatalf("locked after only %d failures", i)
		}
	}
}

func TestOnFailureLocksAtThreshold(t *testing.T) {
	p := testPolicy()
	var s State

	for i := 0; i < p.MaxAttempts; i++ {
		s = p.OnFailure(s, testNow)
	}

	if !s.IsLocked(testNow) {
		t.Fatal("expected lock at threshold")
	}
	if got, want := s.LockedUntil, testNow.Add(p.Duration); !got.Equal(want) {
		t.Fatalf("LockedUntil = %v, want %v", got, want)
	}
}

func TestLockExpires(t *testing.T) {
	p := testPolicy()
	var s State
	for i := 0; i < p.MaxAttempts; i++ {
		s = p.OnFailure(s, testNow)
	}

	cases := []struct {
		name   string
		at     time.Time
		locked bool
	}{
		{"just before expiry", testNow.Add(p.Duration - time.Second), true},
		{"at expiry", testNow.Add(p.Duration), false},
		{"after expiry", testNow.Add(p.Duration + time.Hour), false},
	}

	for _, tc := range cases {
		if got := s.IsLocked(tc.at); got != tc.locked {
			t.Errorf("%s: IsLocked = %v, want %v", tc.name, got, tc.locked)
		}
	}
}

func TestOnFailureWhileLockedExtends(t *testing.T) {
	p := testPolicy()
	var s State
	for i := 0; i < p.MaxAttempts; i++ {
		s = p.OnFailure(s, testNow)
	}

	later := testNow.Add(10 * time.Minute)
	s = p.OnFailure(s, later)

	if got, want := s.LockedUntil, later.Add(p.Duration); !got.Equal(want) {
		t.Fatalf("lock not re-extended: LockedUntil = %v, want %v", got, want)
	}
}

func TestOnSuccessClearsEverything(t *testing.T) {
	p := testPolicy()
	var s State
	for i := 0; i < p.MaxAttempts; i++ {
		s = p.OnFailure(s, testNow)
	}

	s = p.OnSuccess(s)

	if s.FailedAttempts != 0 || !s.LockedUntil.IsZero() {
		t.Fatalf("expected cleared state, got %+v", s)
	}
	if s.IsLocked(testNow) {
		t.Fatal("cleared state must not be locked")
	}
}

func TestValidate(t *testing.T) {
	if err := testPolicy().Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}
	if err := (Policy{MaxAttempts: 0, Duration: time.Minute}).Validate(); err == nil {
		t.Fatal("expected zero max attempts to be rejected")
	}
	if err := (Policy{MaxAttempts: 3, Duration: 0}).Validate(); err == nil {
		t.Fatal("expected zero duration to be rejected")
	}
}
