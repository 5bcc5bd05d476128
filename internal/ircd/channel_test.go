package ircd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelMakesCreatorOperator(t *testing.T) {
	ch := newChannel("#lobby", 5)

	assert.True(t, ch.isMember(5))
	assert.True(t, ch.isOperator(5))
	assert.True(t, ch.TopicRestricted, "new channels start +t")
	assert.Equal(t, []int{5}, ch.roster)
}

func TestRosterPreservesInsertionOrder(t *testing.T) {
	ch := newChannel("#lobby", 1)
	ch.addMember(3)
	ch.addMember(2)

	assert.Equal(t, []int{1, 3, 2}, ch.snapshotRoster())
}

func TestAddMemberIsIdempotent(t *testing.T) {
	ch := newChannel("#lobby", 1)
	ch.addMember(1)

	assert.Equal(t, []int{1}, ch.roster)
}

func TestRemoveMemberDropsFromRosterAndOperators(t *testing.T) {
	ch := newChannel("#lobby", 1)
	ch.addMember(2)

	nowEmpty := ch.removeMember(1)
	require.False(t, nowEmpty)
	assert.False(t, ch.isMember(1))
	assert.False(t, ch.isOperator(1))
	assert.Equal(t, []int{2}, ch.roster)
}

func TestRemoveLastMemberReportsEmpty(t *testing.T) {
	ch := newChannel("#lobby", 1)

	nowEmpty := ch.removeMember(1)
	assert.True(t, nowEmpty)
	assert.Empty(t, ch.roster)
}

func TestSnapshotRosterIsACopy(t *testing.T) {
	ch := newChannel("#lobby", 1)
	snap := ch.snapshotRoster()
	ch.addMember(2)

	assert.Equal(t, []int{1}, snap, "mutating the channel after snapshot must not affect it")
	assert.Equal(t, []int{1, 2}, ch.roster)
}

func TestModeStringOrderIsFixed(t *testing.T) {
	ch := newChannel("#lobby", 1)
	ch.InviteOnly = true
	ch.TopicRestricted = true
	ch.Password = "secret"
	ch.UserLimit = 10

	assert.Equal(t, "+itkl secret 10", ch.modeString())
}

func TestModeStringOmitsUnsetFlags(t *testing.T) {
	ch := newChannel("#lobby", 1)
	ch.TopicRestricted = false

	assert.Equal(t, "+", ch.modeString())
}
