package runtime_test

import (
	"testing"

	"github.com/aretw0/carecall/internal/runtime"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"client_name":     "client_name",
		"clientName":      "client_name",
		"ClientName":      "client_name",
		"adjustedEndTime": "adjusted_end_time",
		"IVRNumber":       "ivr_number",
		"ivrNumber":       "ivr_number",
		"client-name":     "client_name",
		"  officeState ":  "office_state",
		"client__name":    "client_name",
		"_leading":        "leading",
		"":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, runtime.NormalizeKey(in), "NormalizeKey(%q)", in)
	}
}

func TestNormalizeContext(t *testing.T) {
	got := runtime.NormalizeContext(map[string]string{
		"clientName":     "camel",
		"client_name":    "snake",
		"officeLocation": "Texas",
		"":               "dropped",
	})

	assert.Equal(t, map[string]string{
		"client_name":     "snake",
		"office_location": "Texas",
	}, got)
}
