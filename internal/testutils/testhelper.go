package testutils

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestHelper bundles a test with a logger for the code under test.
type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a helper whose logger writes debug output through t.Log,
// so it is shown only for failing tests or with -v.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(testWriter{t})
	return &TestHelper{T: t, Logger: logger}
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
