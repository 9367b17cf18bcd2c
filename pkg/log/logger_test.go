package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mlerrors "github.com/YuminosukeSato/mlwiz/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestZerologLogger_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProvider(&buf, LevelDebug, false)

	logger := provider.GetLoggerWithName("automl.Runner").With(ProblemTypeKey, "Regression")
	logger.Info("candidate evaluated",
		ModelNameKey, "Linear Regression",
		MSEKey, 0.25,
		SamplesKey, 80,
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "candidate evaluated", entry["message"])
	assert.Equal(t, "automl.Runner", entry[ComponentKey])
	assert.Equal(t, "Regression", entry[ProblemTypeKey])
	assert.Equal(t, "Linear Regression", entry[ModelNameKey])
	assert.Equal(t, 0.25, entry[MSEKey])
	assert.Equal(t, 80.0, entry[SamplesKey])
}

func TestZerologLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProvider(&buf, LevelWarn, false)
	logger := provider.GetLogger()

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))

	provider.SetLevel(LevelDebug)
	provider.GetLogger().Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestZerologLogger_ErrorFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProvider(&buf, LevelDebug, false).GetLogger()

	err := mlerrors.NewModelFitError("Logistic Regression", "fit", fmt.Errorf("diverged"))
	logger.Error("candidate failed", ErrorKey, err, ErrorCodeKey, mlerrors.KindOf(err))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, err.Error(), entries[0][ErrorKey])
	assert.Equal(t, mlerrors.KindModelFitFailure, entries[0][ErrorCodeKey])

	details, ok := entries[0][ErrorDetailsKey].(map[string]any)
	require.True(t, ok, "structured error details expected")
	assert.Equal(t, "Logistic Regression", details["model_name"])
}

func TestZerologLogger_OddFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProvider(&buf, LevelDebug, false).GetLogger()

	logger.Info("odd", "dangling")
	logger.Info("bare error", fmt.Errorf("boom"), "k", "v")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "dangling", entries[0]["!BADKEY"])
	assert.Equal(t, "boom", entries[1][ErrorKey])
	assert.Equal(t, "v", entries[1]["k"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetProviderRoutesWarnings(t *testing.T) {
	provider, testLogger := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)
	t.Cleanup(func() {
		SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo, false))
		mlerrors.SetZerologWarnFunc(nil)
	})

	mlerrors.Warn(mlerrors.NewConvergenceWarning("lbfgs", 10, "increase max_iter"))

	assert.True(t, testLogger.ContainsMessage("lbfgs failed to converge"))
	assert.True(t, testLogger.ContainsField(ComponentKey, "warnings"))

	GetLoggerWithName("dataset").Info("loaded", FilenameKey, "iris.csv")
	assert.True(t, testLogger.ContainsField(FilenameKey, "iris.csv"))
}

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelInfo)

	testLogger.Debug("debug message")
	testLogger.With(ModelNameKey, "TestModel").Info("contextual message", OperationKey, OperationFit, "number", 42)
	testLogger.Error("error message", ErrorKey, fmt.Errorf("test error"))

	assert.NotContains(t, buffer.String(), "debug message")
	assert.True(t, testLogger.ContainsMessage("contextual message"))
	assert.True(t, testLogger.ContainsField(ModelNameKey, "TestModel"))
	assert.True(t, testLogger.ContainsField(OperationKey, OperationFit))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrorKey, "test error"))

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ERROR", entries[1]["level"])

	testLogger.Clear()
	assert.Empty(t, buffer.String())
}

func TestTestLogger_Concurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				testLogger.Info(fmt.Sprintf("goroutine %d message %d", id, j), "goroutine_id", id)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 80)
}
