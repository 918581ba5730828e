package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAgainstRange(t *testing.T) {
	min, max := 4.0, 10.0

	assert.Equal(t, FlagLow, Classify(3.9, min, max))
	assert.Equal(t, FlagHigh, Classify(10.1, min, max))
	assert.Equal(t, FlagNormal, Classify(7.0, min, max))

	// Boundary values are in range.
	assert.Equal(t, FlagNormal, Classify(4.0, min, max))
	assert.Equal(t, FlagNormal, Classify(10.0, min, max))
}

func TestStatusForFlag(t *testing.T) {
	assert.Equal(t, "Normal", StatusFor(FlagNormal))
	assert.Equal(t, "Abnormal", StatusFor(FlagLow))
	assert.Equal(t, "Abnormal", StatusFor(FlagHigh))
	assert.Equal(t, "Unclassified", StatusFor(FlagUnclassified))
}

func TestUnclassifiedIsNotNormal(t *testing.T) {
	assert.NotEqual(t, FlagNormal, FlagUnclassified)
	assert.NotEqual(t, StatusFor(FlagNormal), StatusFor(FlagUnclassified))
}
