package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChannelValidation(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewChannelService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	renovation := seedRenovation(t, gdb, owner)

	cases := []struct {
		name    string
		channel string
		wantErr error
	}{
		{"empty", "   ", ErrInvalidChannelName},
		{"too long", strings.Repeat("a", 65), ErrInvalidChannelName},
		{"bad character", "bath <tiles>", ErrInvalidChannelName},
		{"ok", "Bathroom re-tiling '26", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateChannel(renovation.ID, owner.ID, tc.channel)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateChannelCreatorBecomesMember(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewChannelService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	renovation := seedRenovation(t, gdb, owner)

	channel, err := svc.CreateChannel(renovation.ID, owner.ID, "general")
	require.NoError(t, err)

	isMember, err := svc.IsChannelMember(channel.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, isMember)
}

func TestCreateChannelRequiresRenovationMembership(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewChannelService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	outsider := seedUser(t, gdb, "Oli", "Nguyen")
	renovation := seedRenovation(t, gdb, owner)

	_, err := svc.CreateChannel(renovation.ID, outsider.ID, "general")
	assert.ErrorIs(t, err, ErrNotRenovationMember)

	_, err = svc.CreateChannel(999, owner.ID, "general")
	assert.ErrorIs(t, err, ErrRenovationNotFound)
}

func TestAddMemberIdempotentAndScoped(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewChannelService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	bob := seedUser(t, gdb, "Bob", "Mason")
	outsider := seedUser(t, gdb, "Oli", "Nguyen")
	renovation := seedRenovation(t, gdb, owner, bob)
	channel, err := svc.CreateChannel(renovation.ID, owner.ID, "general")
	require.NoError(t, err)

	require.NoError(t, svc.AddMember(channel.ID, bob.ID))
	require.NoError(t, svc.AddMember(channel.ID, bob.ID))

	isMember, err := svc.IsChannelMember(channel.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, isMember)

	assert.ErrorIs(t, svc.AddMember(channel.ID, outsider.ID), ErrNotRenovationMember)

	require.NoError(t, svc.RemoveMember(channel.ID, bob.ID))
	isMember, err = svc.IsChannelMember(channel.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestListChannelsHidesOtherMembersChannels(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewChannelService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	bob := seedUser(t, gdb, "Bob", "Mason")
	renovation := seedRenovation(t, gdb, owner, bob)

	shared, err := svc.CreateChannel(renovation.ID, owner.ID, "general")
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(shared.ID, bob.ID))
	_, err = svc.CreateChannel(renovation.ID, owner.ID, "owners only")
	require.NoError(t, err)

	channels, err := svc.ListChannels(renovation.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, shared.ID, channels[0].ID)
}

func TestEnsureAiChannelIdempotentPerUser(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewChannelService(gdb)
	owner := seedUser(t, gdb, "Ana", "Kim")
	bob := seedUser(t, gdb, "Bob", "Mason")
	assistant := seedAssistant(t, gdb)
	renovation := seedRenovation(t, gdb, owner, bob)

	first, err := svc.EnsureAiChannel(renovation.ID, owner.ID, assistant.ID)
	require.NoError(t, err)
	assert.Equal(t, AiChannelName, first.Name)
	assert.True(t, first.IsAiChannel)

	again, err := svc.EnsureAiChannel(renovation.ID, owner.ID, assistant.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// A different user gets their own channel.
	bobs, err := svc.EnsureAiChannel(renovation.ID, bob.ID, assistant.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, bobs.ID)

	// Both the owner and the assistant are members.
	for _, userID := range []int64{owner.ID, assistant.ID} {
		isMember, err := svc.IsChannelMember(first.ID, userID)
		require.NoError(t, err)
		assert.True(t, isMember)
	}

	// Reserved channels never show up for other members.
	channels, err := svc.ListChannels(renovation.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, bobs.ID, channels[0].ID)
}
