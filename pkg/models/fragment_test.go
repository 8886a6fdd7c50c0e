package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentJSONCarriesDiscriminator(t *testing.T) {
	frags := []Fragment{
		TextFragment{Text: "ask "},
		MentionFragment{UserID: 7, DisplayName: "Bob Mason", Text: "@Bob"},
		LinkFragment{URL: "https://tiles.example", Text: "tiles"},
	}

	raw, err := json.Marshal(frags)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 3)

	assert.Equal(t, "TEXT", decoded[0]["type"])
	assert.Equal(t, "ask ", decoded[0]["text"])

	assert.Equal(t, "MENTION", decoded[1]["type"])
	assert.Equal(t, float64(7), decoded[1]["userId"])
	assert.Equal(t, "Bob Mason", decoded[1]["displayName"])
	assert.Equal(t, "@Bob", decoded[1]["text"])

	assert.Equal(t, "LINK", decoded[2]["type"])
	assert.Equal(t, "https://tiles.example", decoded[2]["url"])
	assert.Equal(t, "tiles", decoded[2]["text"])
}
