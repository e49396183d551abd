package dashAuth

import (
	"io"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/dashAuth/internal/audit"
)

// AuditEvent is one session or refresh lifecycle record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink writes audit events to a zap logger.
type ZapSink = internalaudit.ZapSink

// Audit event types.
const (
	AuditSessionRejected = internalaudit.EventSessionRejected
	AuditRouteForbidden  = internalaudit.EventRouteForbidden
	AuditRefreshStarted  = internalaudit.EventRefreshStarted
	AuditRefreshSuccess  = internalaudit.EventRefreshSuccess
	AuditRefreshFailure  = internalaudit.EventRefreshFailure
	AuditForcedLogout    = internalaudit.EventForcedLogout
)

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
