package owner

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwner_UserAndGuestAreDistinct(t *testing.T) {
	id := uuid.New()
	u := User(id)
	g := Guest(id.String())

	assert.True(t, u.IsUser())
	assert.False(t, g.IsUser())
	assert.False(t, u.Equal(g))
	assert.NotEqual(t, u.Key(), g.Key())
}

func TestOwner_Equality(t *testing.T) {
	id := uuid.New()
	assert.True(t, User(id).Equal(User(id)))
	assert.False(t, User(id).Equal(User(uuid.New())))
	assert.True(t, Guest("tok-1").Equal(Guest("tok-1")))
	assert.False(t, Guest("tok-1").Equal(Guest("tok-2")))
}

func TestOwner_Zero(t *testing.T) {
	var o Owner
	assert.True(t, o.IsZero())
	assert.Empty(t, o.Key())

	userID, token := o.SQLArgs()
	assert.Nil(t, userID)
	assert.Nil(t, token)
}

func TestOwner_SQLArgsRoundTrip(t *testing.T) {
	id := uuid.New()

	uid, tok := User(id).SQLArgs()
	assert.Equal(t, id, uid)
	assert.Nil(t, tok)

	got, err := FromColumns(&id, nil)
	require.NoError(t, err)
	assert.True(t, got.Equal(User(id)))

	token := "session-abc"
	got, err = FromColumns(nil, &token)
	require.NoError(t, err)
	assert.True(t, got.Equal(Guest(token)))
}

func TestFromColumns_RejectsCorruptRows(t *testing.T) {
	id := uuid.New()
	token := "session-abc"

	_, err := FromColumns(&id, &token)
	assert.Error(t, err)

	_, err = FromColumns(nil, nil)
	assert.Error(t, err)
}

func TestNewSessionToken_IsUUID(t *testing.T) {
	tok := NewSessionToken()
	_, err := uuid.Parse(tok)
	assert.NoError(t, err)
	assert.NotEqual(t, tok, NewSessionToken())
}
