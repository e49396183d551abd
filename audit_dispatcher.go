package dashAuth

import internalaudit "github.com/MrEthical07/dashAuth/internal/audit"

// newAuditDispatcher returns nil when auditing is disabled; a nil dispatcher
// drops events and reports zero counts.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}
