package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

func TestRollbarLogger_prepare(t *testing.T) {
	logger := NewRollbarLogger(zap.NewNop(), core.NewTestConfig())
	logger.Enable(false)

	err := errors.New("boom")
	usr := user.User{ID: "u-1", Username: "admin"}
	args, fields := logger.prepare("msg", []interface{}{err, map[string]interface{}{"path": "/"}, usr, usr})

	assert.Equal(t, []interface{}{"msg", err, map[string]interface{}{"path": "/"}}, args)
	require.Len(t, fields, 3)
	assert.Equal(t, "error", fields[0].Key)
	assert.Equal(t, "path", fields[1].Key)
	assert.Equal(t, "user_id", fields[2].Key)
}

func TestStackTracer(t *testing.T) {
	frames, ok := stackTracer(errors.Wrap(errors.New("boom"), "wrapped"))
	require.True(t, ok)
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[0].Function, "TestStackTracer")

	_, ok = stackTracer(assert.AnError)
	assert.False(t, ok)
}
