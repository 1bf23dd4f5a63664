package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/flaggate/pkg/logger"
)

func TestError(t *testing.T) {
	t.Parallel()
	err := errors.New("boom")
	attr := logger.Error(err)
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "flag_key", logger.FlagKey("x").Key)
	assert.Equal(t, "reason", logger.Reason("default").Key)
	assert.True(t, logger.IP("").Equal(slog.Attr{}))
	assert.Equal(t, "10.0.0.1", logger.IP("10.0.0.1").Value.String())
	assert.InDelta(t, 0.733, logger.Score(0.73312).Value.Float64(), 0.0001)
}
