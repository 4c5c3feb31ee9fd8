package novels

import "github.com/zxckotee/novels-sub001/internal/audit"

// AuditEvent is one session lifecycle record.
type AuditEvent = audit.Event

// AuditSink consumes audit events.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events in a channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes events as JSON lines.
type JSONWriterSink = audit.JSONWriterSink

// ZapSink logs events.
type ZapSink = audit.ZapSink

var (
	NewChannelSink    = audit.NewChannelSink
	NewJSONWriterSink = audit.NewJSONWriterSink
	NewZapSink        = audit.NewZapSink
)

// Audit event types.
const (
	EventLogin              = "login"
	EventRegister           = "register"
	EventLogout             = "logout"
	EventUnauthorizedLogout = "unauthorized_logout"
	EventRefresh            = "refresh"
	EventHydrated           = "hydrated"
	EventPersistFailed      = "persist_failed"
)
