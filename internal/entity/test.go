package entity

import (
	"strings"
	"time"

	"github.com/liminalqa/liminal/internal/ids"
)

// TestStatus is the canonical outcome of a Test. DTO-layer aliases
// (passed/success, failed/error, flaky) are normalized to these
// values before an entity.Test is ever constructed — see ParseTestStatus.
type TestStatus string

const (
	TestPass    TestStatus = "pass"
	TestFail    TestStatus = "fail"
	TestXFail   TestStatus = "xfail"
	TestFlake   TestStatus = "flake"
	TestTimeout TestStatus = "timeout"
	TestSkip    TestStatus = "skip"
)

// IsPass reports whether the status represents a successful outcome.
func (s TestStatus) IsPass() bool {
	return s == TestPass
}

func (s TestStatus) valid() bool {
	switch s {
	case TestPass, TestFail, TestXFail, TestFlake, TestTimeout, TestSkip:
		return true
	default:
		return false
	}
}

// ParseTestStatus accepts status strings case-insensitively with
// aliases: pass|passed|success → pass; fail|failed|error → fail;
// xfail|flake|flaky|timeout|skip pass through. Unknown input normalizes
// to skip.
func ParseTestStatus(s string) TestStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pass", "passed", "success":
		return TestPass
	case "fail", "failed", "error":
		return TestFail
	case "xfail":
		return TestXFail
	case "flake", "flaky":
		return TestFlake
	case "timeout":
		return TestTimeout
	case "skip":
		return TestSkip
	default:
		return TestSkip
	}
}

// TestError describes a failure's location and message.
type TestError struct {
	Message  string          `json:"message"`
	Location *SourceLocation `json:"location,omitempty"`
}

// SourceLocation pinpoints where a failure occurred.
type SourceLocation struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// Test is a one-shot record written once at completion. (RunRef, Name) is
// unique; re-registering the same pair resolves to the existing identity.
type Test struct {
	ID          ids.ID     `json:"id"`
	RunRef      ids.ID     `json:"run_ref"`
	Name        string     `json:"name"`
	Suite       string     `json:"suite,omitempty"`
	Guidance    string     `json:"guidance,omitempty"`
	Status      TestStatus `json:"status"`
	DurationMs  int64      `json:"duration_ms"`
	Error       *TestError `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
	Extra       Extra      `json:"-"`
}

func (t Test) EntityID() ids.ID { return t.ID }
func (t Test) EntityKind() Kind { return KindTest }

// durationToleranceMs is the maximum allowed drift between DurationMs
// and CompletedAt-StartedAt before Validate rejects the Test.
const durationToleranceMs = 1

// Validate checks the required fields and the duration invariant of a Test.
func (t Test) Validate() error {
	if t.RunRef == ids.Empty {
		return ErrTestRunRefEmpty
	}

	if t.Name == "" {
		return ErrTestNameEmpty
	}

	if len(t.Name) > maxTestNameLength {
		return ErrTestNameTooLong
	}

	if !t.Status.valid() {
		return ErrTestStatusInvalid
	}

	if t.StartedAt.IsZero() {
		return ErrTestStartedAtZero
	}

	if !t.CompletedAt.IsZero() {
		expected := t.CompletedAt.Sub(t.StartedAt).Milliseconds()
		if diff := expected - t.DurationMs; diff < -durationToleranceMs || diff > durationToleranceMs {
			return ErrTestDurationInvalid
		}
	}

	return nil
}
