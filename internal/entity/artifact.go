package entity

import (
	"strings"

	"github.com/liminalqa/liminal/internal/ids"
)

// ArtifactKind categorizes the content an Artifact captures.
type ArtifactKind string

const (
	ArtifactScreenshot  ArtifactKind = "screenshot"
	ArtifactAPIResponse ArtifactKind = "api_response"
	ArtifactWSMessage   ArtifactKind = "ws_message"
	ArtifactGRPCTrace   ArtifactKind = "grpc_trace"
	ArtifactLog         ArtifactKind = "log"
	ArtifactVideo       ArtifactKind = "video"
	ArtifactTrace       ArtifactKind = "trace"
)

func (k ArtifactKind) valid() bool {
	switch k {
	case ArtifactScreenshot, ArtifactAPIResponse, ArtifactWSMessage, ArtifactGRPCTrace,
		ArtifactLog, ArtifactVideo, ArtifactTrace:
		return true
	default:
		return false
	}
}

// ParseArtifactKind accepts kind strings case-insensitively with
// collapsed aliases (apiresponse, wsmessage, grpctrace).
func ParseArtifactKind(s string) ArtifactKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "screenshot":
		return ArtifactScreenshot
	case "apiresponse", "api_response":
		return ArtifactAPIResponse
	case "wsmessage", "ws_message":
		return ArtifactWSMessage
	case "grpctrace", "grpc_trace":
		return ArtifactGRPCTrace
	case "log":
		return ArtifactLog
	case "video":
		return ArtifactVideo
	case "trace":
		return ArtifactTrace
	default:
		return ArtifactLog
	}
}

// Artifact is an immutable, content-addressed leaf. Artifacts sharing a
// sha256 share storage; the content-addressed path is authoritative.
type Artifact struct {
	ID      ids.ID       `json:"id"`
	TestRef ids.ID       `json:"test_ref"`
	SHA256  string       `json:"sha256"`
	Path    string       `json:"path,omitempty"`
	Size    int64        `json:"size,omitempty"`
	Mime    string       `json:"mime,omitempty"`
	Kind    ArtifactKind `json:"kind"`
	Extra   Extra        `json:"-"`
}

func (a Artifact) EntityID() ids.ID { return a.ID }
func (a Artifact) EntityKind() Kind { return KindArtifact }

// Validate checks the required fields of an Artifact.
func (a Artifact) Validate() error {
	if a.TestRef == ids.Empty {
		return ErrArtifactTestRefEmpty
	}

	if a.SHA256 == "" {
		return ErrArtifactSHA256Empty
	}

	if !a.Kind.valid() {
		return ErrArtifactKindInvalid
	}

	return nil
}
