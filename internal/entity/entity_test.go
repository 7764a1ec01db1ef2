package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liminalqa/liminal/internal/ids"
)

func TestParseTestStatusAliases(t *testing.T) {
	cases := map[string]TestStatus{
		"pass": TestPass, "Passed": TestPass, "SUCCESS": TestPass,
		"fail": TestFail, "failed": TestFail, "error": TestFail,
		"xfail": TestXFail, "flake": TestFlake, "flaky": TestFlake,
		"timeout": TestTimeout, "skip": TestSkip, "garbage": TestSkip,
	}

	for in, want := range cases {
		assert.Equal(t, want, ParseTestStatus(in), "input %q", in)
	}
}

func TestParseSignalKindAliases(t *testing.T) {
	assert.Equal(t, SignalWebsocket, ParseSignalKind("ws"))
	assert.Equal(t, SignalDatabase, ParseSignalKind("DB"))
	assert.Equal(t, SignalSystem, ParseSignalKind("unknown-kind"))
}

func TestParseArtifactKindAliases(t *testing.T) {
	assert.Equal(t, ArtifactAPIResponse, ParseArtifactKind("apiresponse"))
	assert.Equal(t, ArtifactWSMessage, ParseArtifactKind("wsmessage"))
}

func TestTestValidateDurationTolerance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	good := Test{
		RunRef: ids.ID("run"), Name: "t", Status: TestPass,
		StartedAt: start, CompletedAt: start.Add(100 * time.Millisecond), DurationMs: 100,
	}
	require.NoError(t, good.Validate())

	bad := good
	bad.DurationMs = 500
	require.ErrorIs(t, bad.Validate(), ErrTestDurationInvalid)
}

func TestTestValidateRequiredFields(t *testing.T) {
	var empty Test
	require.ErrorIs(t, empty.Validate(), ErrTestRunRefEmpty)

	withRun := Test{RunRef: ids.ID("run")}
	require.ErrorIs(t, withRun.Validate(), ErrTestNameEmpty)
}

func TestUnknownFieldsSurviveRoundTrip(t *testing.T) {
	blob := []byte(`{
		"id": "01HZX5YBN0TJ5C1JNZV4JDHM7Q",
		"run_ref": "01HZX5YBN0TJ5C1JNZV4JDHM7R",
		"name": "checkout_flow",
		"status": "pass",
		"duration_ms": 100,
		"started_at": "2026-07-01T12:00:00Z",
		"completed_at": "2026-07-01T12:00:00.1Z",
		"quarantined": true,
		"owner_team": "payments"
	}`)

	var decoded Test
	require.NoError(t, json.Unmarshal(blob, &decoded))

	assert.Equal(t, "checkout_flow", decoded.Name)
	assert.Contains(t, decoded.Extra, "quarantined")
	assert.Contains(t, decoded.Extra, "owner_team")

	reencoded, err := json.Marshal(decoded)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(reencoded, &raw))
	assert.JSONEq(t, "true", string(raw["quarantined"]))
	assert.JSONEq(t, `"payments"`, string(raw["owner_team"]))

	var again Test
	require.NoError(t, json.Unmarshal(reencoded, &again))
	assert.Equal(t, decoded, again)
}

func TestKnownFieldsNeverEnterExtra(t *testing.T) {
	blob := []byte(`{"id": "01HZX5YBN0TJ5C1JNZV4JDHM7Q", "name": "checkout", "version": "1.2.3"}`)

	var decoded System
	require.NoError(t, json.Unmarshal(blob, &decoded))

	assert.Equal(t, "1.2.3", decoded.Version)
	assert.Nil(t, decoded.Extra)
}

func TestAttributeCustomVsBlessed(t *testing.T) {
	assert.False(t, AttrTestStatus.Custom())
	assert.Equal(t, "test/status", AttrTestStatus.String())

	custom := CustomAttribute("vendor/extra")
	assert.True(t, custom.Custom())
	assert.Equal(t, "custom:vendor/extra", custom.String())
}

func TestRunOpen(t *testing.T) {
	r := Run{}
	assert.True(t, r.Open())

	now := time.Now()
	r.EndedAt = &now
	assert.False(t, r.Open())
}

func TestBuildStatusTerminal(t *testing.T) {
	assert.True(t, BuildSuccess.Terminal())
	assert.True(t, BuildFailed.Terminal())
	assert.False(t, BuildRunning.Terminal())
}
