package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncoder_RoundTrip(t *testing.T) {
	enc := NewLabelEncoder()
	labels := []string{"setosa", "virginica", "setosa", "versicolor"}

	codes, err := enc.FitTransform(labels)
	require.NoError(t, err)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, enc.Classes())
	assert.Equal(t, []float64{0, 2, 0, 1}, codes)

	back, err := enc.InverseTransform(codes)
	require.NoError(t, err)
	assert.Equal(t, labels, back)
}

func TestLabelEncoder_NumericOrdering(t *testing.T) {
	enc := NewLabelEncoder()
	require.NoError(t, enc.Fit([]string{"10", "9", "1.5", "b", "a"}))
	assert.Equal(t, []string{"1.5", "9", "10", "a", "b"}, enc.Classes())
}

func TestLabelEncoder_Errors(t *testing.T) {
	enc := NewLabelEncoder()

	_, err := enc.Transform([]string{"a"})
	assert.Error(t, err, "not fitted")
	assert.Error(t, enc.Fit(nil))

	require.NoError(t, enc.Fit([]string{"a", "b"}))
	_, err = enc.Transform([]string{"c"})
	assert.Error(t, err)

	_, err = enc.InverseTransform([]float64{2})
	assert.Error(t, err)
	_, err = enc.InverseTransform([]float64{0.5})
	assert.Error(t, err)
}
