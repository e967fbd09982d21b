// Package sinks adapts extraction diagnostics to the service's logging and metrics.
package sinks

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/partscout/internal/extract"
)

// LogObserver writes extraction events as structured logs.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver wires a Zap logger to the extract.Observer interface.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger}
}

// Observe logs evt. Kept records log at debug; drops and batch failures at warn.
func (o *LogObserver) Observe(evt extract.Event) {
	fields := []zap.Field{
		zap.String("batch", string(evt.Batch)),
		zap.String("event", string(evt.Kind)),
	}
	if evt.Index > 0 {
		fields = append(fields, zap.Int("index", evt.Index))
	}
	if evt.Label != "" {
		fields = append(fields, zap.String("label", evt.Label))
	}
	if evt.Err != nil {
		fields = append(fields, zap.Error(evt.Err))
	}

	level := zapcore.DebugLevel
	switch evt.Kind {
	case extract.EventRecordSkipped:
		fields = append(fields, zap.Float64("price", evt.Price))
	case extract.EventRecordDropped, extract.EventPriceUnparseable, extract.EventBatchFailed:
		level = zapcore.WarnLevel
	case extract.EventBatchDone:
		level = zapcore.InfoLevel
		fields = append(fields, zap.Int("kept", evt.Kept), zap.Int("seen", evt.Seen))
	}
	if ce := o.logger.Check(level, "extraction event"); ce != nil {
		ce.Write(fields...)
	}
}
