package refrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrefersGenderAgnosticConfig(t *testing.T) {
	configs := []Config{
		{TestCode: "WBC", Gender: "Male", Min: 4.5, Max: 11.0, Version: 3},
		{TestCode: "WBC", Gender: "", Min: 4.0, Max: 10.0, Version: 1},
	}

	cfg, ok := Resolve(configs, "Male")
	require.True(t, ok)
	assert.Equal(t, "", cfg.Gender)
	assert.Equal(t, 4.0, cfg.Min)
}

func TestResolveGenderSpecificMatch(t *testing.T) {
	configs := []Config{
		{TestCode: "HGB", Gender: "Male", Min: 13.5, Max: 17.5},
		{TestCode: "HGB", Gender: "Female", Min: 12.0, Max: 15.5},
	}

	cfg, ok := Resolve(configs, "Female")
	require.True(t, ok)
	assert.Equal(t, 12.0, cfg.Min)
}

func TestResolveGenderMatchIsCaseSensitive(t *testing.T) {
	configs := []Config{
		{TestCode: "HGB", Gender: "Female", Min: 12.0, Max: 15.5},
	}

	_, ok := Resolve(configs, "female")
	assert.False(t, ok)
}

func TestResolveNoMatch(t *testing.T) {
	_, ok := Resolve(nil, "Male")
	assert.False(t, ok)

	configs := []Config{{TestCode: "HGB", Gender: "Female", Min: 12.0, Max: 15.5}}
	_, ok = Resolve(configs, "")
	assert.False(t, ok)
}
