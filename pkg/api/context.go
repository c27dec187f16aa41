package api

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeContext turns loosely typed context data into string values.
// Numbers and booleans are stringified; nested objects are rejected.
func DecodeContext(raw map[string]any) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid context_data: %w", err)
	}
	return out, nil
}
