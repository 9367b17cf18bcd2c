package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func regressionCSV() string {
	var b strings.Builder
	b.WriteString("x,noise,y\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "%d,%d,%d\n", i, (i*7)%5, 3*i+2)
	}
	return b.String()
}

func TestPreviewCommand(t *testing.T) {
	path := writeCSV(t, "a,b\n1,x\n2,y\n3,z\n")
	out, err := execute(t, "preview", path, "--rows", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "3 rows x 2 columns")
}

func TestDescribeAndCorrelationCommands(t *testing.T) {
	path := writeCSV(t, regressionCSV())

	out, err := execute(t, "describe", path)
	require.NoError(t, err)
	assert.Contains(t, out, "mean")

	out, err = execute(t, "correlation", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1.00")
}

func TestPlotCommand(t *testing.T) {
	path := writeCSV(t, regressionCSV())
	dest := filepath.Join(t.TempDir(), "scatter.svg")

	out, err := execute(t, "plot", path, "--kind", "bivariate", "--columns", "x,y", "--out", dest)
	require.NoError(t, err)
	assert.Contains(t, out, dest)
	_, err = os.Stat(dest)
	assert.NoError(t, err)
}

func TestEvaluateCommand(t *testing.T) {
	path := writeCSV(t, regressionCSV())
	t.Setenv("MLWIZ_MODELS_FOREST_N_ESTIMATORS", "10")

	out, err := execute(t, "evaluate", path, "--target", "y")
	require.NoError(t, err)
	assert.Contains(t, out, "Problem type: Regression")
	assert.Contains(t, out, "Random Forest Regressor")
	assert.Contains(t, out, "Best model: Linear Regression")

	_, err = execute(t, "evaluate", path, "--target", "price")
	assert.Error(t, err)

	_, err = execute(t, "evaluate", path)
	assert.Error(t, err)
}

func TestConfigFlag(t *testing.T) {
	path := writeCSV(t, regressionCSV())
	cfgPath := filepath.Join(t.TempDir(), "mlwiz.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("automl:\n  test_size: 2\n"), 0o600))

	_, err := execute(t, "describe", path, "--config", cfgPath)
	assert.Error(t, err)
}
