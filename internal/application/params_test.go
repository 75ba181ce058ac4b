package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-mcp-server/internal/domain"
)

func assertInvalidParams(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	domainErr, ok := err.(*domain.Error)
	require.True(t, ok, "expected *domain.Error, got %T", err)
	assert.Equal(t, domain.InvalidParams, domainErr.Code)
}

func TestGetStringParam(t *testing.T) {
	args := map[string]interface{}{
		"present": "value",
		"number":  float64(7),
	}

	v, err := getStringParam(args, "present", true)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = getStringParam(args, "absent", false)
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = getStringParam(args, "absent", true)
	assertInvalidParams(t, err)

	_, err = getStringParam(args, "number", true)
	assertInvalidParams(t, err)
}

func TestGetIntParam(t *testing.T) {
	args := map[string]interface{}{
		"fromJSON": float64(42),
		"plain":    7,
		"text":     "nope",
	}

	v, err := getIntParam(args, "fromJSON", true)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = getIntParam(args, "plain", true)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = getIntParam(args, "absent", false)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = getIntParam(args, "absent", true)
	assertInvalidParams(t, err)

	_, err = getIntParam(args, "text", false)
	assertInvalidParams(t, err)
}

func TestGetIntParamRejectsFractionalValues(t *testing.T) {
	args := map[string]interface{}{
		"fraction": float64(2.7),
		"negative": float64(-3.5),
	}

	_, err := getIntParam(args, "fraction", true)
	assertInvalidParams(t, err)

	_, err = getIntParam(args, "negative", false)
	assertInvalidParams(t, err)
}

func TestGetStringSliceParam(t *testing.T) {
	args := map[string]interface{}{
		"labels": []interface{}{"one", "two"},
		"mixed":  []interface{}{"one", 2},
		"scalar": "not-a-list",
	}

	v, err := getStringSliceParam(args, "labels")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, v)

	v, err = getStringSliceParam(args, "absent")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = getStringSliceParam(args, "mixed")
	assertInvalidParams(t, err)

	_, err = getStringSliceParam(args, "scalar")
	assertInvalidParams(t, err)
}
