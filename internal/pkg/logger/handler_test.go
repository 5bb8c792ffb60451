package logger

import (
	"bytes"
	"context"
	log "log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newShippingLogger() (*log.Logger, *bytes.Buffer, *bytes.Buffer) {
	var local, remote bytes.Buffer
	h := newFanout(
		log.NewJSONHandler(&local, &log.HandlerOptions{Level: log.LevelInfo}),
		&shipFilter{next: log.NewJSONHandler(&remote, nil), alertLevel: log.LevelWarn},
	)
	return log.New(&ContextHandler{h}), &local, &remote
}

func lines(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), "\n")
}

func TestShipFilterForwardsTracedAndAlerts(t *testing.T) {
	logger, local, remote := newShippingLogger()
	ctx := WithTraceID(context.Background(), "req-1")

	logger.InfoContext(ctx, "upload confirmed")
	logger.Info("cron tick")
	logger.Warn("cdc publish retry")
	logger.Debug("ignored")

	assert.Equal(t, 3, lines(local))
	assert.Equal(t, 2, lines(remote))
	assert.Contains(t, remote.String(), `"trace_id":"req-1"`)
	assert.Contains(t, remote.String(), "cdc publish retry")
	assert.NotContains(t, remote.String(), "cron tick")
}

func TestFanoutKeepsAttrsAndGroups(t *testing.T) {
	logger, local, remote := newShippingLogger()
	logger.With("couple_id", 9).WithGroup("cdc").Error("convert failed", "table", "images")

	assert.Contains(t, local.String(), `"couple_id":9`)
	assert.Contains(t, local.String(), `"cdc":{"table":"images"}`)
	assert.Contains(t, remote.String(), `"couple_id":9`)
}
