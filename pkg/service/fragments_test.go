package service

import (
	"strings"
	"testing"

	"github.com/renohub/renohub/pkg/db"
	"github.com/renohub/renohub/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// joinFragments reassembles the literal content from a fragment sequence.
func joinFragments(frags []models.Fragment) string {
	var b strings.Builder
	for _, f := range frags {
		b.WriteString(f.FragmentText())
	}
	return b.String()
}

func TestExtractFragmentsPlainText(t *testing.T) {
	msg := &db.Message{Content: "just a plain message"}

	frags := ExtractFragments(msg)

	require.Len(t, frags, 1)
	assert.Equal(t, models.TextFragment{Text: "just a plain message"}, frags[0])
}

func TestExtractFragmentsMentionAndLink(t *testing.T) {
	//                0123456789...
	content := "ask @Bob about https://tiles.example first"
	msg := &db.Message{
		Content: content,
		Mentions: []db.Mention{
			{UserID: 7, StartPosition: 4, EndPosition: 8, User: &db.User{ID: 7, FirstName: "Bob", LastName: "Mason"}},
		},
		Links: []db.Link{
			{URL: "https://tiles.example", StartPosition: 15, EndPosition: 36},
		},
	}

	frags := ExtractFragments(msg)

	require.Len(t, frags, 5)
	assert.Equal(t, models.TextFragment{Text: "ask "}, frags[0])
	assert.Equal(t, models.MentionFragment{UserID: 7, DisplayName: "Bob Mason", Text: "@Bob"}, frags[1])
	assert.Equal(t, models.TextFragment{Text: " about "}, frags[2])
	assert.Equal(t, models.LinkFragment{URL: "https://tiles.example", Text: "https://tiles.example"}, frags[3])
	assert.Equal(t, models.TextFragment{Text: " first"}, frags[4])

	assert.Equal(t, content, joinFragments(frags))
}

func TestExtractFragmentsAdjacentSpansNoGaps(t *testing.T) {
	// Mention at position 0 and a link ending at the last rune: no leading,
	// separating or trailing text fragments beyond the single space.
	content := "@Ana docs"
	msg := &db.Message{
		Content:  content,
		Mentions: []db.Mention{{UserID: 1, StartPosition: 0, EndPosition: 4}},
		Links:    []db.Link{{URL: "https://d.example", StartPosition: 5, EndPosition: 9}},
	}

	frags := ExtractFragments(msg)

	require.Len(t, frags, 3)
	assert.IsType(t, models.MentionFragment{}, frags[0])
	assert.Equal(t, models.TextFragment{Text: " "}, frags[1])
	assert.IsType(t, models.LinkFragment{}, frags[2])
	assert.Equal(t, content, joinFragments(frags))
}

func TestExtractFragmentsMentionWithoutUserFallsBackToContent(t *testing.T) {
	msg := &db.Message{
		Content:  "ping @Cleo",
		Mentions: []db.Mention{{UserID: 3, StartPosition: 5, EndPosition: 10}},
	}

	frags := ExtractFragments(msg)

	require.Len(t, frags, 2)
	mention, ok := frags[1].(models.MentionFragment)
	require.True(t, ok)
	assert.Equal(t, "@Cleo", mention.Text)
	assert.Equal(t, "@Cleo", mention.DisplayName)
}

func TestExtractFragmentsRuneOffsets(t *testing.T) {
	// Positions count runes, not bytes. "héllo " is 6 runes but 7 bytes.
	content := "héllo @Bob"
	msg := &db.Message{
		Content:  content,
		Mentions: []db.Mention{{UserID: 2, StartPosition: 6, EndPosition: 10}},
	}

	frags := ExtractFragments(msg)

	require.Len(t, frags, 2)
	assert.Equal(t, models.TextFragment{Text: "héllo "}, frags[0])
	mention, ok := frags[1].(models.MentionFragment)
	require.True(t, ok)
	assert.Equal(t, "@Bob", mention.Text)
	assert.Equal(t, content, joinFragments(frags))
}

func TestExtractFragmentsClampsOutOfBoundsSpans(t *testing.T) {
	// Malformed rows must not panic; offsets are clamped to the content.
	msg := &db.Message{
		Content:  "short",
		Mentions: []db.Mention{{UserID: 4, StartPosition: 3, EndPosition: 99}},
	}

	frags := ExtractFragments(msg)

	require.Len(t, frags, 2)
	mention, ok := frags[1].(models.MentionFragment)
	require.True(t, ok)
	assert.Equal(t, "rt", mention.Text)
	assert.Equal(t, "short", joinFragments(frags))
}

func TestExtractFragmentsZeroLengthSpan(t *testing.T) {
	// Zero-length spans are emitted as empty typed fragments; content
	// reassembly is unaffected.
	msg := &db.Message{
		Content:  "hello",
		Mentions: []db.Mention{{UserID: 5, StartPosition: 2, EndPosition: 2}},
	}

	frags := ExtractFragments(msg)

	assert.Equal(t, "hello", joinFragments(frags))
	var sawMention bool
	for _, f := range frags {
		if m, ok := f.(models.MentionFragment); ok {
			sawMention = true
			assert.Empty(t, m.Text)
		}
	}
	assert.True(t, sawMention)
}
