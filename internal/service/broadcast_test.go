package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_BroadcastToOwnerAndPartner(t *testing.T) {
	ctx := context.Background()

	t.Run("reaches owner and partner", func(t *testing.T) {
		partners := &mockPartnerResolver{}
		partners.On("GetPartner", mock.Anything, "alice").Return("bob", true, nil)
		publisher := &recordingPublisher{}

		delivered := NewBroadcaster(partners, publisher).
			BroadcastToOwnerAndPartner(ctx, "alice", "task:created", map[string]any{"id": 1})

		assert.Equal(t, 2, delivered)
		require.Len(t, publisher.events, 1)
		assert.Equal(t, "task:created", publisher.events[0].eventType)
		assert.Equal(t, []string{"alice", "bob"}, publisher.events[0].targets)
	})

	t.Run("unpaired owner only", func(t *testing.T) {
		partners := &mockPartnerResolver{}
		partners.On("GetPartner", mock.Anything, "carol").Return("", false, nil)
		publisher := &recordingPublisher{}

		NewBroadcaster(partners, publisher).BroadcastToOwnerAndPartner(ctx, "carol", "task:created", nil)

		require.Len(t, publisher.events, 1)
		assert.Equal(t, []string{"carol"}, publisher.events[0].targets)
	})

	t.Run("lookup failure still reaches owner", func(t *testing.T) {
		partners := &mockPartnerResolver{}
		partners.On("GetPartner", mock.Anything, "alice").Return("", false, assert.AnError)
		publisher := &recordingPublisher{}

		NewBroadcaster(partners, publisher).BroadcastToOwnerAndPartner(ctx, "alice", "task:created", nil)

		require.Len(t, publisher.events, 1)
		assert.Equal(t, []string{"alice"}, publisher.events[0].targets)
	})

	t.Run("third account never targeted", func(t *testing.T) {
		f := newPairingFixture(t)
		alice := f.account(t, "alice@example.com")
		bob := f.account(t, "bob@example.com")
		carol := f.account(t, "carol@example.com")
		_, err := f.svc.Redeem(ctx, f.issue(t, alice), bob)
		require.NoError(t, err)

		publisher := &recordingPublisher{}
		NewBroadcaster(f.svc, publisher).BroadcastToOwnerAndPartner(ctx, bob, "memory:created", nil)

		require.Len(t, publisher.events, 1)
		assert.ElementsMatch(t, []string{alice, bob}, publisher.events[0].targets)
		assert.NotContains(t, publisher.events[0].targets, carol)
	})
}
