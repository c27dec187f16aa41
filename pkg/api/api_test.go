package api_test

import (
	"testing"

	"github.com/aretw0/carecall/pkg/api"
	"github.com/aretw0/carecall/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecLoads(t *testing.T) {
	doc, err := api.Spec()
	require.NoError(t, err)
	require.NotNil(t, doc.Info)
	assert.Equal(t, api.Version, doc.Info.Version)

	for _, path := range []string{"/health", "/scenarios", "/start-session", "/chat", "/update-context", "/reset-session-context", "/events"} {
		assert.NotNil(t, doc.Paths.Find(path), "missing path %s", path)
	}
}

func TestFromSummary(t *testing.T) {
	sc, ok := catalog.Default().Scenario("no_schedule")
	require.True(t, ok)

	info := api.FromSummary(sc.Summarize())
	assert.Equal(t, "no_schedule", info.ID)
	assert.Equal(t, sc.FieldNames(), info.ContextFields)
	assert.Len(t, info.Fields, len(sc.Fields))
}

func TestDecodeContext(t *testing.T) {
	got, err := api.DecodeContext(map[string]any{
		"client_name":    "Ana",
		"shift_duration": 8,
		"confirmed":      true,
		"rate":           12.5,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"client_name":    "Ana",
		"shift_duration": "8",
		"confirmed":      "1",
		"rate":           "12.5",
	}, got)

	empty, err := api.DecodeContext(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = api.DecodeContext(map[string]any{"nested": map[string]any{"a": 1}})
	assert.Error(t, err)
}
