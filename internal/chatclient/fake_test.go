package chatclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyforge/polyforge/internal/types/interfaces"
)

func TestSignInRequiresMatchingCodeAndHash(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	hash, err := f.SendCodeRequest(ctx, "+15551234567")
	require.NoError(t, err)

	err = f.SignIn(ctx, "+15551234567", "99999", hash, "")
	assert.Error(t, err)
	assert.False(t, f.IsAuthenticated(ctx))

	err = f.SignIn(ctx, "+15551234567", "00000", hash, "")
	require.NoError(t, err)
	assert.True(t, f.IsAuthenticated(ctx))
}

func TestIterMessagesFiltersByMinIDAndLimit(t *testing.T) {
	f := NewFake()
	f.SeedMessages("peer1",
		&interfaces.ChatMessage{UpstreamID: 1, PeerID: "peer1"},
		&interfaces.ChatMessage{UpstreamID: 2, PeerID: "peer1"},
		&interfaces.ChatMessage{UpstreamID: 3, PeerID: "peer1"},
	)

	msgs, err := f.IterMessages(context.Background(), "peer1", 2, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(2), msgs[0].UpstreamID)

	msgs, err = f.IterMessages(context.Background(), "peer1", 0, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestGetEntityResolvesByPeerIDOrUsername(t *testing.T) {
	f := NewFake()
	f.SeedEntity(&interfaces.ChatEntity{PeerID: "p1", Username: "cool_prints", Title: "Cool Prints"})

	byID, err := f.GetEntity(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Cool Prints", byID.Title)

	byUsername, err := f.GetEntity(context.Background(), "cool_prints")
	require.NoError(t, err)
	assert.Equal(t, "p1", byUsername.PeerID)

	_, err = f.GetEntity(context.Background(), "missing")
	assert.Error(t, err)
}

func TestPushDeliversToSubscribers(t *testing.T) {
	f := NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := f.Subscribe(ctx)
	require.NoError(t, err)

	f.Push(&interfaces.ChatMessage{UpstreamID: 7, PeerID: "peer1"})

	select {
	case msg := <-ch:
		assert.Equal(t, int64(7), msg.UpstreamID)
	default:
		t.Fatal("expected a message on the subscriber channel")
	}
}
