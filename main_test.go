package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type countingSyncer struct{ syncs int }

func (s *countingSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (s *countingSyncer) Sync() error {
	s.syncs++
	return nil
}

func newCountingLogger(w *countingSyncer) *zap.Logger {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, w, zap.InfoLevel))
}

func TestSyncLoggerFlushesReplacedLogger(t *testing.T) {
	first, second := &countingSyncer{}, &countingSyncer{}
	log := newCountingLogger(first)
	flush := syncLogger(&log)

	log = newCountingLogger(second)
	flush()

	assert.Zero(t, first.syncs)
	assert.Equal(t, 1, second.syncs)
}
