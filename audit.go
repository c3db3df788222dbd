package goGuard

import (
	"io"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/sirupsen/logrus"
)

// AuditEvent is one guard-side audit record. It never carries credential values.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events on a channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// LogrusSink writes audit events as structured log entries.
type LogrusSink = audit.LogrusSink

// Audit event types.
const (
	AuditAuthorize      = audit.TypeAuthorize
	AuditRefresh        = audit.TypeRefresh
	AuditSessionCleared = audit.TypeSessionCleared
	AuditSessionCreated = audit.TypeSessionCreated
	AuditLogout         = audit.TypeLogout
)

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

func NewLogrusSink(log logrus.FieldLogger) *LogrusSink { return audit.NewLogrusSink(log) }
