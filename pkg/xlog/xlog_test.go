package xlog_test

import (
	"path"
	"testing"

	"notex/pkg/xlog"

	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	xlog.Init("test", path.Join(t.TempDir(), "xlog-test.log"), nil)
	logger := xlog.GetLogger()
	require.NotNil(t, logger)

	logger.SetLevel("TRACE")

	logger.Trace("this is trace")
	logger.Debug("this is debug")
	logger.Info("this is info")
	logger.Warning("this is warning")
	logger.Error("this is error")
}
