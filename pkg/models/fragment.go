// Fragment sum type for rendered message content
package models

import "encoding/json"

// Fragment type discriminators used on the wire.
const (
	FragmentTypeText    = "TEXT"
	FragmentTypeMention = "MENTION"
	FragmentTypeLink    = "LINK"
)

// Fragment is one typed segment of a message's rendered content. The set of
// implementations is closed: TextFragment, MentionFragment, LinkFragment.
// Fragments are derived on every read and never persisted, so mention display
// names and link targets are always current.
type Fragment interface {
	// FragmentText returns the literal slice of message content this
	// fragment covers. Concatenating FragmentText over a message's
	// fragments in order reconstitutes the content exactly.
	FragmentText() string

	fragment()
}

// TextFragment is a run of plain content between annotated spans.
type TextFragment struct {
	Text string `json:"text"`
}

// MentionFragment covers a mention span. DisplayName is resolved from the
// current user record at read time; Text is the literal content slice.
type MentionFragment struct {
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	Text        string `json:"text"`
}

// LinkFragment covers a hyperlink span.
type LinkFragment struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

func (f TextFragment) FragmentText() string    { return f.Text }
func (f MentionFragment) FragmentText() string { return f.Text }
func (f LinkFragment) FragmentText() string    { return f.Text }

func (TextFragment) fragment()    {}
func (MentionFragment) fragment() {}
func (LinkFragment) fragment()    {}

// MarshalJSON adds the type discriminator expected by clients.

func (f TextFragment) MarshalJSON() ([]byte, error) {
	type alias TextFragment
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{FragmentTypeText, alias(f)})
}

func (f MentionFragment) MarshalJSON() ([]byte, error) {
	type alias MentionFragment
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{FragmentTypeMention, alias(f)})
}

func (f LinkFragment) MarshalJSON() ([]byte, error) {
	type alias LinkFragment
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{FragmentTypeLink, alias(f)})
}
