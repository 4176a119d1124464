package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testShipment(clientID string) *Shipment {
	pallets := 2
	return &Shipment{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		Pallets:     &pallets,
		Boxes:       30,
		GrossKg:     512.5,
		SourceText:  "ACME 2 30 512,5",
		Status:      StatusConfirmed,
		CreatedByID: 100,
		CreatedAtMs: time.Now().UnixMilli(),
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.instanceName)
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestEnsureClient(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("creates a card on first sight", func(t *testing.T) {
		card, err := client.EnsureClient(ctx, "ACME", "Acme Trading")
		require.NoError(t, err)
		assert.NotEmpty(t, card.ID)
		assert.Equal(t, "ACME", card.Code)
		assert.Equal(t, "Acme Trading", card.FullName)
	})

	t.Run("converges on the existing card", func(t *testing.T) {
		first, err := client.EnsureClient(ctx, "BETA", "")
		require.NoError(t, err)
		second, err := client.EnsureClient(ctx, "BETA", "Beta LLC")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("finds by code", func(t *testing.T) {
		card, err := client.FindClientByCode(ctx, "ACME")
		require.NoError(t, err)
		assert.Equal(t, "ACME", card.Code)

		_, err = client.FindClientByCode(ctx, "NOPE")
		assert.True(t, IsNotFound(err))
	})

	t.Run("rejects empty code", func(t *testing.T) {
		_, err := client.EnsureClient(ctx, "", "")
		assert.Error(t, err)
	})
}

func TestShipmentCRUD(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	card, err := client.EnsureClient(ctx, "ACME", "")
	require.NoError(t, err)
	shipment := testShipment(card.ID)

	require.NoError(t, client.CreateShipment(ctx, shipment))

	t.Run("round-trips", func(t *testing.T) {
		got, err := client.GetShipment(ctx, shipment.ID)
		require.NoError(t, err)
		assert.Equal(t, shipment.ID, got.ID)
		assert.Equal(t, shipment.ClientID, got.ClientID)
		require.NotNil(t, got.Pallets)
		assert.Equal(t, 2, *got.Pallets)
		assert.InDelta(t, 512.5, got.GrossKg, 0.001)
		assert.Equal(t, StatusConfirmed, got.Status)
	})

	t.Run("update stamps UpdatedAtMs", func(t *testing.T) {
		shipment.Boxes = 28
		require.NoError(t, client.UpdateShipment(ctx, shipment))

		got, err := client.GetShipment(ctx, shipment.ID)
		require.NoError(t, err)
		assert.Equal(t, 28, got.Boxes)
		assert.NotZero(t, got.UpdatedAtMs)
	})

	t.Run("nil pallets survive", func(t *testing.T) {
		draft := testShipment(card.ID)
		draft.Pallets = nil
		draft.Status = StatusDraft
		require.NoError(t, client.CreateShipment(ctx, draft))

		got, err := client.GetShipment(ctx, draft.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Pallets)
	})

	t.Run("missing shipment is not found", func(t *testing.T) {
		_, err := client.GetShipment(ctx, "no-such")
		assert.True(t, IsNotFound(err))
	})

	t.Run("delete removes shipment and photos", func(t *testing.T) {
		victim := testShipment(card.ID)
		require.NoError(t, client.CreateShipment(ctx, victim))
		require.NoError(t, client.AppendPhoto(ctx, victim.ID, Photo{FileID: "f1", UniqueID: "u1"}))

		require.NoError(t, client.DeleteShipment(ctx, victim.ID))

		_, err := client.GetShipment(ctx, victim.ID)
		assert.True(t, IsNotFound(err))
		photos, err := client.ListPhotos(ctx, victim.ID)
		require.NoError(t, err)
		assert.Empty(t, photos)
	})
}

func TestPhotos_PreserveArrivalOrder(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, client.AppendPhoto(ctx, "ship-1", Photo{FileID: id, UniqueID: "u-" + id}))
	}

	photos, err := client.ListPhotos(ctx, "ship-1")
	require.NoError(t, err)
	require.Len(t, photos, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{photos[0].FileID, photos[1].FileID, photos[2].FileID})

	require.NoError(t, client.ClearPhotos(ctx, "ship-1"))
	photos, err = client.ListPhotos(ctx, "ship-1")
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestScanShipments(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	card, err := client.EnsureClient(ctx, "ACME", "")
	require.NoError(t, err)

	ids := []string{
		"bbbb1111-0000-4000-8000-000000000001",
		"bbbb2222-0000-4000-8000-000000000002",
	}
	for _, id := range ids {
		s := testShipment(card.ID)
		s.ID = id
		require.NoError(t, client.CreateShipment(ctx, s))
		require.NoError(t, client.AppendPhoto(ctx, id, Photo{FileID: "f", UniqueID: "u"}))
	}

	t.Run("prefix matches", func(t *testing.T) {
		matches, err := client.ScanShipments(ctx, "bbbb")
		require.NoError(t, err)
		assert.ElementsMatch(t, ids, matches, "photo subkeys must not appear")
	})

	t.Run("narrow prefix", func(t *testing.T) {
		matches, err := client.ScanShipments(ctx, "bbbb1111")
		require.NoError(t, err)
		assert.Equal(t, []string{ids[0]}, matches)
	})

	t.Run("no matches", func(t *testing.T) {
		matches, err := client.ScanShipments(ctx, "ffff")
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestBurstBindings(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	t.Run("first bind wins", func(t *testing.T) {
		bound, err := client.BindBurst(ctx, "b1", BurstBinding{ShipmentID: "s1", Event: EventCreated}, time.Minute)
		require.NoError(t, err)
		assert.True(t, bound)

		bound, err = client.BindBurst(ctx, "b1", BurstBinding{ShipmentID: "s2", Event: EventCreated}, time.Minute)
		require.NoError(t, err)
		assert.False(t, bound, "a bound key never rebinds")

		binding, err := client.LookupBurst(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, "s1", binding.ShipmentID)
		assert.Equal(t, EventCreated, binding.Event)
	})

	t.Run("unknown key is not found", func(t *testing.T) {
		_, err := client.LookupBurst(ctx, "never")
		assert.True(t, IsNotFound(err))
	})

	t.Run("binding expires", func(t *testing.T) {
		bound, err := client.BindBurst(ctx, "b2", BurstBinding{ShipmentID: "s3", Event: EventUpdated}, time.Minute)
		require.NoError(t, err)
		require.True(t, bound)

		mr.FastForward(2 * time.Minute)

		_, err = client.LookupBurst(ctx, "b2")
		assert.True(t, IsNotFound(err))

		// An expired key is free to bind again.
		bound, err = client.BindBurst(ctx, "b2", BurstBinding{ShipmentID: "s4", Event: EventCreated}, time.Minute)
		require.NoError(t, err)
		assert.True(t, bound)
	})
}

func TestPrompts(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	newPrompt := func(actorID int64, kind PromptKind) *Prompt {
		return &Prompt{
			Token:       uuid.New().String(),
			ActorID:     actorID,
			Kind:        kind,
			ShipmentID:  "ship-1",
			CreatedAtMs: time.Now().UnixMilli(),
		}
	}

	t.Run("consume is exactly once", func(t *testing.T) {
		p := newPrompt(100, PromptEdit)
		require.NoError(t, client.PutPrompt(ctx, p, time.Minute))

		got, err := client.ConsumePrompt(ctx, p.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.ActorID)
		assert.Equal(t, PromptEdit, got.Kind)

		_, err = client.ConsumePrompt(ctx, p.Token)
		assert.True(t, IsNotFound(err))
	})

	t.Run("same actor and kind supersedes", func(t *testing.T) {
		older := newPrompt(100, PromptAddPhotos)
		newer := newPrompt(100, PromptAddPhotos)
		require.NoError(t, client.PutPrompt(ctx, older, time.Minute))
		require.NoError(t, client.PutPrompt(ctx, newer, time.Minute))

		_, err := client.ConsumePrompt(ctx, older.Token)
		assert.True(t, IsNotFound(err), "superseded token is gone")

		got, err := client.ConsumePrompt(ctx, newer.Token)
		require.NoError(t, err)
		assert.Equal(t, newer.Token, got.Token)
	})

	t.Run("active reads without consuming", func(t *testing.T) {
		p := newPrompt(200, PromptReplacePhotos)
		require.NoError(t, client.PutPrompt(ctx, p, time.Minute))

		got, err := client.ActivePrompt(ctx, 200, PromptReplacePhotos)
		require.NoError(t, err)
		assert.Equal(t, p.Token, got.Token)

		got, err = client.ConsumePrompt(ctx, p.Token)
		require.NoError(t, err)
		assert.Equal(t, p.Token, got.Token)

		_, err = client.ActivePrompt(ctx, 200, PromptReplacePhotos)
		assert.True(t, IsNotFound(err), "consume clears the actor index")
	})

	t.Run("prompts expire", func(t *testing.T) {
		p := newPrompt(300, PromptEdit)
		require.NoError(t, client.PutPrompt(ctx, p, time.Minute))
		mr.FastForward(2 * time.Minute)

		_, err := client.ConsumePrompt(ctx, p.Token)
		assert.True(t, IsNotFound(err))
		_, err = client.ActivePrompt(ctx, 300, PromptEdit)
		assert.True(t, IsNotFound(err))
	})

	t.Run("drop discards", func(t *testing.T) {
		p := newPrompt(400, PromptEdit)
		require.NoError(t, client.PutPrompt(ctx, p, time.Minute))
		require.NoError(t, client.DropPrompt(ctx, p.Token))

		_, err := client.ConsumePrompt(ctx, p.Token)
		assert.True(t, IsNotFound(err))
	})
}

func TestIntakeSessions(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	_, err := client.ActiveIntake(ctx, 100)
	assert.True(t, IsNotFound(err))

	require.NoError(t, client.StartIntake(ctx, 100, "ship-1"))
	sid, err := client.ActiveIntake(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "ship-1", sid)

	require.NoError(t, client.AppendIntakeItem(ctx, "ship-1", IntakeItem{Pallets: 1, Boxes: 10, GrossKg: 100.5}))
	require.NoError(t, client.AppendIntakeItem(ctx, "ship-1", IntakeItem{Pallets: 2, Boxes: 20, GrossKg: 200}))

	items, err := client.ListIntakeItems(ctx, "ship-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Pallets)
	assert.InDelta(t, 200, items[1].GrossKg, 0.001)

	require.NoError(t, client.ClearIntake(ctx, 100))
	_, err = client.ActiveIntake(ctx, 100)
	assert.True(t, IsNotFound(err))
}

func TestRoster(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	members := []*Member{
		{ChatID: 1, Role: RoleUser, Verified: true, ClientID: "client-1"},
		{ChatID: 2, Role: RoleUser, Verified: false, ClientID: "client-1"},
		{ChatID: 10, Role: RoleManager, Verified: true},
		{ChatID: 11, Role: RoleAdmin, Verified: true},
	}
	for _, m := range members {
		require.NoError(t, client.UpsertMember(ctx, m))
	}

	t.Run("get member", func(t *testing.T) {
		m, err := client.GetMember(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, RoleUser, m.Role)
		assert.True(t, m.Verified)

		_, err = client.GetMember(ctx, 999)
		assert.True(t, IsNotFound(err))
	})

	t.Run("client roster", func(t *testing.T) {
		roster, err := client.RosterForClient(ctx, "client-1")
		require.NoError(t, err)
		assert.Len(t, roster, 2)
	})

	t.Run("managers include admins", func(t *testing.T) {
		managers, err := client.ManagersAll(ctx)
		require.NoError(t, err)
		ids := []int64{}
		for _, m := range managers {
			ids = append(ids, m.ChatID)
		}
		assert.ElementsMatch(t, []int64{10, 11}, ids)
	})

	t.Run("manager assignment", func(t *testing.T) {
		require.NoError(t, client.AssignManagerClient(ctx, 10, "client-1"))

		assigned, err := client.ManagersForClient(ctx, "client-1")
		require.NoError(t, err)
		require.Len(t, assigned, 1)
		assert.Equal(t, int64(10), assigned[0].ChatID)
	})

	t.Run("demotion leaves the manager set", func(t *testing.T) {
		require.NoError(t, client.UpsertMember(ctx, &Member{ChatID: 11, Role: RoleUser, Verified: true}))

		managers, err := client.ManagersAll(ctx)
		require.NoError(t, err)
		for _, m := range managers {
			assert.NotEqual(t, int64(11), m.ChatID)
		}
	})

	t.Run("blocked member keeps card", func(t *testing.T) {
		require.NoError(t, client.UpsertMember(ctx, &Member{ChatID: 1, Role: RoleBlocked, Verified: true, ClientID: "client-1"}))

		m, err := client.GetMember(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, RoleBlocked, m.Role)
	})
}

func TestInboundItemPubSub(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := client.SubscribeInboundItems(ctx)
	require.NoError(t, err)
	defer sub.Close()

	item := &InboundItem{
		ActorID:    100,
		BurstKey:   "b1",
		Caption:    "ACME 2 30 512,5",
		PhotoSizes: []Photo{{FileID: "f1", UniqueID: "u1", Width: 1280, Height: 960}},
	}

	// Publish after a short delay so the subscription is registered.
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = client.PublishInboundItem(ctx, item)
	}()

	select {
	case got := <-sub.Events():
		assert.Equal(t, int64(100), got.ActorID)
		assert.Equal(t, "b1", got.BurstKey)
		require.Len(t, got.PhotoSizes, 1)
		assert.Equal(t, "f1", got.PhotoSizes[0].FileID)
	case err := <-sub.Errors():
		t.Fatalf("unexpected subscription error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound item")
	}
}

func TestOutboundSendPubSub(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := client.SubscribeOutboundSends(ctx)
	require.NoError(t, err)
	defer sub.Close()

	t.Run("rejects invalid sends", func(t *testing.T) {
		err := client.PublishOutboundSend(ctx, &OutboundSend{RecipientID: 1, Shape: ShapePhoto})
		assert.Error(t, err)
	})

	send := &OutboundSend{
		RecipientID:  1,
		Shape:        ShapeAlbum,
		Text:         "caption",
		PhotoFileIDs: []string{"f1", "f2"},
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = client.PublishOutboundSend(ctx, send)
	}()

	select {
	case got := <-sub.Events():
		assert.Equal(t, ShapeAlbum, got.Shape)
		assert.Equal(t, []string{"f1", "f2"}, got.PhotoFileIDs)
	case err := <-sub.Errors():
		t.Fatalf("unexpected subscription error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound send")
	}
}
