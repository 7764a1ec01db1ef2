package entity

import "errors"

// Sentinel validation errors, surfaced by the API layer as 400
// Validation errors. Named individually so callers can errors.Is against
// a specific failure rather than parsing a message string.
var (
	ErrSystemNameEmpty = errors.New("entity: system name cannot be empty")

	ErrBuildSystemRefEmpty = errors.New("entity: build system_ref cannot be empty")
	ErrBuildCommitEmpty    = errors.New("entity: build commit cannot be empty")
	ErrBuildStatusInvalid  = errors.New("entity: build status invalid")

	ErrRunBuildRefEmpty = errors.New("entity: run build_ref cannot be empty")
	ErrRunPlanNameEmpty = errors.New("entity: run plan_name cannot be empty")
	ErrRunAlreadyClosed = errors.New("entity: run already closed")

	ErrTestRunRefEmpty     = errors.New("entity: test run_ref cannot be empty")
	ErrTestNameEmpty       = errors.New("entity: test name cannot be empty")
	ErrTestNameTooLong     = errors.New("entity: test name exceeds maximum length")
	ErrTestStatusInvalid   = errors.New("entity: test status invalid")
	ErrTestStartedAtZero   = errors.New("entity: test started_at cannot be zero")
	ErrTestDurationInvalid = errors.New("entity: test duration_ms does not match completed_at - started_at")

	ErrSignalTestRefEmpty = errors.New("entity: signal test_ref cannot be empty")
	ErrSignalKindInvalid  = errors.New("entity: signal kind invalid")

	ErrArtifactTestRefEmpty = errors.New("entity: artifact test_ref cannot be empty")
	ErrArtifactSHA256Empty  = errors.New("entity: artifact sha256 cannot be empty")
	ErrArtifactKindInvalid  = errors.New("entity: artifact kind invalid")

	ErrFactEntityRefEmpty = errors.New("entity: fact entity_ref cannot be empty")
	ErrFactAttributeEmpty = errors.New("entity: fact attribute cannot be empty")
)

// maxTestNameLength bounds Test.Name.
const maxTestNameLength = 750
