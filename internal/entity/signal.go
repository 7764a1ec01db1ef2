package entity

import (
	"strings"
	"time"

	"github.com/liminalqa/liminal/internal/ids"
)

// SignalKind categorizes the channel a Signal was observed on.
type SignalKind string

const (
	SignalUI        SignalKind = "ui"
	SignalAPI       SignalKind = "api"
	SignalWebsocket SignalKind = "websocket"
	SignalGRPC      SignalKind = "grpc"
	SignalDatabase  SignalKind = "database"
	SignalNetwork   SignalKind = "network"
	SignalSystem    SignalKind = "system"
)

func (k SignalKind) valid() bool {
	switch k {
	case SignalUI, SignalAPI, SignalWebsocket, SignalGRPC, SignalDatabase, SignalNetwork, SignalSystem:
		return true
	default:
		return false
	}
}

// ParseSignalKind accepts kind strings case-insensitively with aliases
// (ws→websocket, db→database). Unknown input normalizes to system.
func ParseSignalKind(s string) SignalKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ui":
		return SignalUI
	case "api":
		return SignalAPI
	case "websocket", "ws":
		return SignalWebsocket
	case "grpc":
		return SignalGRPC
	case "database", "db":
		return SignalDatabase
	case "network":
		return SignalNetwork
	case "system":
		return SignalSystem
	default:
		return SignalSystem
	}
}

// Signal is an immutable leaf observation attached to a Test.
type Signal struct {
	ID         ids.ID            `json:"id"`
	TestRef    ids.ID            `json:"test_ref"`
	Kind       SignalKind        `json:"kind"`
	Timestamp  time.Time         `json:"timestamp"`
	LatencyMs  *float64          `json:"latency_ms,omitempty"`
	PayloadRef string            `json:"payload_ref,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	Extra      Extra             `json:"-"`
}

func (s Signal) EntityID() ids.ID { return s.ID }
func (s Signal) EntityKind() Kind { return KindSignal }

// Validate checks the required fields of a Signal.
func (s Signal) Validate() error {
	if s.TestRef == ids.Empty {
		return ErrSignalTestRefEmpty
	}

	if !s.Kind.valid() {
		return ErrSignalKindInvalid
	}

	return nil
}
