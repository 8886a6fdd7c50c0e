// Fragment extraction - re-segments message content using its mention and
// link spans as cut points.
package service

import (
	"sort"

	"github.com/renohub/renohub/pkg/db"
	"github.com/renohub/renohub/pkg/models"
)

// span is a mention or link cut point, normalised for the single walk below.
type span struct {
	start, end int
	mention    *db.Mention
	link       *db.Link
}

// ExtractFragments converts a message's content plus its persisted mention
// and link spans into the ordered fragment sequence clients render.
//
// It is deterministic, side-effect free and total: spans are assumed
// non-overlapping (established at message creation), but malformed data is a
// producer bug, not a parser failure, so out-of-bounds offsets are clamped
// and zero-length spans are emitted as empty typed fragments rather than
// rejected. Positions are rune offsets into Content.
func ExtractFragments(msg *db.Message) []models.Fragment {
	runes := []rune(msg.Content)

	spans := make([]span, 0, len(msg.Mentions)+len(msg.Links))
	for i := range msg.Mentions {
		m := &msg.Mentions[i]
		spans = append(spans, span{start: m.StartPosition, end: m.EndPosition, mention: m})
	}
	for i := range msg.Links {
		l := &msg.Links[i]
		spans = append(spans, span{start: l.StartPosition, end: l.EndPosition, link: l})
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})

	fragments := make([]models.Fragment, 0, 2*len(spans)+1)
	cur := 0
	for _, sp := range spans {
		start := clamp(sp.start, cur, len(runes))
		end := clamp(sp.end, start, len(runes))

		if start > cur {
			fragments = append(fragments, models.TextFragment{Text: string(runes[cur:start])})
		}

		text := string(runes[start:end])
		switch {
		case sp.mention != nil:
			display := text
			if sp.mention.User != nil {
				display = sp.mention.User.DisplayName()
			}
			fragments = append(fragments, models.MentionFragment{
				UserID:      sp.mention.UserID,
				DisplayName: display,
				Text:        text,
			})
		case sp.link != nil:
			fragments = append(fragments, models.LinkFragment{
				URL:  sp.link.URL,
				Text: text,
			})
		}
		cur = end
	}

	if cur < len(runes) {
		fragments = append(fragments, models.TextFragment{Text: string(runes[cur:])})
	}

	return fragments
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
