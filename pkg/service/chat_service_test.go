package service

import (
	"strings"
	"testing"

	"github.com/renohub/renohub/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveMessageUnknownChannel(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestChatService(gdb)
	user := seedUser(t, gdb, "Ana", "Kim")

	_, err := svc.SaveMessage(999, user.ID, "hello", nil, nil)

	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestSaveMessageNonMemberRejected(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestChatService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	outsider := seedUser(t, gdb, "Oli", "Nguyen")
	renovation := seedRenovation(t, gdb, owner)
	channel := seedChannel(t, gdb, renovation, "general", owner)

	_, err := svc.SaveMessage(channel.ID, outsider.ID, "hello", nil, nil)

	assert.ErrorIs(t, err, ErrChannelUnauthorised)
}

func TestSaveMessageEmptyContentRejected(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestChatService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	renovation := seedRenovation(t, gdb, owner)
	channel := seedChannel(t, gdb, renovation, "general", owner)

	_, err := svc.SaveMessage(channel.ID, owner.ID, "   ", nil, nil)

	assert.ErrorIs(t, err, ErrMessageInvalid)
}

func TestSaveMessageGraphemeLimit(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestChatService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	renovation := seedRenovation(t, gdb, owner)
	channel := seedChannel(t, gdb, renovation, "general", owner)

	// A regional-indicator flag is two runes but one user-perceived
	// character, so 2048 flags sit exactly at the limit.
	flags := strings.Repeat("\U0001F1E9\U0001F1EA", MaxMessageGraphemes)
	msg, err := svc.SaveMessage(channel.ID, owner.ID, flags, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, flags, msg.Content)

	_, err = svc.SaveMessage(channel.ID, owner.ID, strings.Repeat("a", MaxMessageGraphemes+1), nil, nil)
	assert.ErrorIs(t, err, ErrMessageInvalid)
}

func TestSaveMessagePersistsSpans(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestChatService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	bob := seedUser(t, gdb, "Bob", "Mason")
	renovation := seedRenovation(t, gdb, owner, bob)
	channel := seedChannel(t, gdb, renovation, "general", owner, bob)

	content := "ask @Bob about https://tiles.example"
	msg, err := svc.SaveMessage(channel.ID, owner.ID, content,
		[]models.MentionSpec{{UserID: bob.ID, Start: 4, End: 8}},
		[]models.LinkSpec{{URL: "https://tiles.example", Start: 15, End: 36}})
	require.NoError(t, err)

	stored, err := svc.GetMessage(msg.ID)
	require.NoError(t, err)
	require.Len(t, stored.Mentions, 1)
	assert.Equal(t, bob.ID, stored.Mentions[0].UserID)
	assert.False(t, stored.Mentions[0].Seen)
	require.Len(t, stored.Links, 1)
	assert.Equal(t, "https://tiles.example", stored.Links[0].URL)
	require.NotNil(t, stored.Sender)
	assert.Equal(t, owner.ID, stored.Sender.ID)
}

func TestSaveMessageDropsOutOfBoundsMention(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestChatService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	bob := seedUser(t, gdb, "Bob", "Mason")
	renovation := seedRenovation(t, gdb, owner, bob)
	channel := seedChannel(t, gdb, renovation, "general", owner, bob)

	msg, err := svc.SaveMessage(channel.ID, owner.ID, "short",
		[]models.MentionSpec{
			{UserID: bob.ID, Start: 2, End: 99}, // past the end
			{UserID: bob.ID, Start: 3, End: 3},  // zero length
			{UserID: bob.ID, Start: -1, End: 2}, // negative start
		}, nil)
	require.NoError(t, err)

	assert.Empty(t, msg.Mentions)
}

func TestSaveMessageDropsMentionOfNonMember(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestChatService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	outsider := seedUser(t, gdb, "Oli", "Nguyen")
	renovation := seedRenovation(t, gdb, owner)
	channel := seedChannel(t, gdb, renovation, "general", owner)

	msg, err := svc.SaveMessage(channel.ID, owner.ID, "hi @Oli",
		[]models.MentionSpec{{UserID: outsider.ID, Start: 3, End: 7}}, nil)
	require.NoError(t, err)

	assert.Empty(t, msg.Mentions)
}

func TestSaveMessageAssistantMentionAllowed(t *testing.T) {
	// The assistant is mentionable in any channel without being a
	// renovation member.
	gdb := newTestDB(t)
	svc := newTestChatService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	assistant := seedAssistant(t, gdb)
	renovation := seedRenovation(t, gdb, owner)
	channel := seedChannel(t, gdb, renovation, "general", owner)

	msg, err := svc.SaveMessage(channel.ID, owner.ID, "hi @RenoBot",
		[]models.MentionSpec{{UserID: assistant.ID, Start: 3, End: 11}}, nil)
	require.NoError(t, err)

	require.Len(t, msg.Mentions, 1)
	assert.Equal(t, assistant.ID, msg.Mentions[0].UserID)
}

func TestSaveMessageOverlapInputOrderWins(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestChatService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	bob := seedUser(t, gdb, "Bob", "Mason")
	renovation := seedRenovation(t, gdb, owner, bob)
	channel := seedChannel(t, gdb, renovation, "general", owner, bob)

	// The second mention overlaps the first accepted span and is dropped
	// even though it starts earlier in the content.
	msg, err := svc.SaveMessage(channel.ID, owner.ID, "hey @Bob Mason",
		[]models.MentionSpec{
			{UserID: bob.ID, Start: 4, End: 8},
			{UserID: bob.ID, Start: 2, End: 6},
		}, nil)
	require.NoError(t, err)

	require.Len(t, msg.Mentions, 1)
	assert.Equal(t, 4, msg.Mentions[0].StartPosition)

	// Links compete for spans with mentions too.
	msg2, err := svc.SaveMessage(channel.ID, owner.ID, "hey @Bob Mason",
		[]models.MentionSpec{{UserID: bob.ID, Start: 4, End: 8}},
		[]models.LinkSpec{{URL: "https://x.example", Start: 6, End: 10}})
	require.NoError(t, err)
	assert.Len(t, msg2.Mentions, 1)
	assert.Empty(t, msg2.Links)
}

func TestSaveMessageDropsLinkWithoutURL(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestChatService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	renovation := seedRenovation(t, gdb, owner)
	channel := seedChannel(t, gdb, renovation, "general", owner)

	msg, err := svc.SaveMessage(channel.ID, owner.ID, "see docs",
		nil, []models.LinkSpec{{URL: "  ", Start: 4, End: 8}})
	require.NoError(t, err)

	assert.Empty(t, msg.Links)
}

func TestToOutgoingUsesCurrentDisplayName(t *testing.T) {
	gdb := newTestDB(t)
	svc := newTestChatService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	bob := seedUser(t, gdb, "Bob", "Mason")
	renovation := seedRenovation(t, gdb, owner, bob)
	channel := seedChannel(t, gdb, renovation, "general", owner, bob)

	msg, err := svc.SaveMessage(channel.ID, owner.ID, "hi @Bob",
		[]models.MentionSpec{{UserID: bob.ID, Start: 3, End: 7}}, nil)
	require.NoError(t, err)

	require.NoError(t, gdb.Model(bob).Update("last_name", "Stone").Error)

	stored, err := svc.GetMessage(msg.ID)
	require.NoError(t, err)
	out := svc.ToOutgoing(stored)

	var mention models.MentionFragment
	for _, f := range out.Fragments {
		if m, ok := f.(models.MentionFragment); ok {
			mention = m
		}
	}
	assert.Equal(t, "Bob Stone", mention.DisplayName)
	assert.Equal(t, "@Bob", mention.Text)
}
