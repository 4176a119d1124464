package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the ledger.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new ledger client for the specified instance.
// The client automatically namespaces all keys and channels with the instance name.
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// IsNotFound reports whether err signals a missing (or expired) entry.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// ─── Clients ──────────────────────────────────────────────────────────────

// EnsureClient returns the client card for the given code, creating a
// minimal card if none exists. Creation is guarded with SETNX on the code
// index so concurrent callers converge on a single card.
func (c *Client) EnsureClient(ctx context.Context, code, fullName string) (*ClientCard, error) {
	if code == "" {
		return nil, fmt.Errorf("client code cannot be empty")
	}

	idxKey := ClientCodeKey(c.instanceName, code)
	if id, err := c.rdb.Get(ctx, idxKey).Result(); err == nil {
		return c.GetClient(ctx, id)
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to look up client code: %w", err)
	}

	card := &ClientCard{
		ID:          uuid.New().String(),
		Code:        code,
		FullName:    fullName,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	set, err := c.rdb.SetNX(ctx, idxKey, card.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim client code: %w", err)
	}
	if !set {
		// A concurrent caller created the card first.
		id, err := c.rdb.Get(ctx, idxKey).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to re-read client code: %w", err)
		}
		return c.GetClient(ctx, id)
	}

	if err := c.rdb.HSet(ctx, ClientKey(c.instanceName, card.ID), ClientToHash(card)).Err(); err != nil {
		return nil, fmt.Errorf("failed to write client card: %w", err)
	}
	return card, nil
}

// GetClient retrieves a client card by ID.
// Returns (nil, redis.Nil) if the card doesn't exist.
func (c *Client) GetClient(ctx context.Context, clientID string) (*ClientCard, error) {
	hashData, err := c.rdb.HGetAll(ctx, ClientKey(c.instanceName, clientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read client card: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}
	return HashToClient(hashData)
}

// FindClientByCode resolves a client code to its card.
// Returns (nil, redis.Nil) if the code is unknown.
func (c *Client) FindClientByCode(ctx context.Context, code string) (*ClientCard, error) {
	id, err := c.rdb.Get(ctx, ClientCodeKey(c.instanceName, code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to look up client code: %w", err)
	}
	return c.GetClient(ctx, id)
}

// ─── Shipments ────────────────────────────────────────────────────────────

// CreateShipment writes a shipment to Redis.
// Validates the shipment before writing. This method is idempotent - writing
// the same shipment twice is safe.
func (c *Client) CreateShipment(ctx context.Context, s *Shipment) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid shipment: %w", err)
	}

	key := ShipmentKey(c.instanceName, s.ID)
	if err := c.rdb.HSet(ctx, key, ShipmentToHash(s)).Err(); err != nil {
		return fmt.Errorf("failed to write shipment to Redis: %w", err)
	}
	return nil
}

// GetShipment retrieves a shipment by ID.
// Returns (nil, redis.Nil) if the shipment doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetShipment(ctx context.Context, shipmentID string) (*Shipment, error) {
	hashData, err := c.rdb.HGetAll(ctx, ShipmentKey(c.instanceName, shipmentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read shipment from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}
	return HashToShipment(hashData)
}

// UpdateShipment replaces an existing shipment with new data (full HSET
// replacement). Stamps updated_at_ms. Validates the shipment before writing.
func (c *Client) UpdateShipment(ctx context.Context, s *Shipment) error {
	s.UpdatedAtMs = time.Now().UnixMilli()
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid shipment: %w", err)
	}

	key := ShipmentKey(c.instanceName, s.ID)
	if err := c.rdb.HSet(ctx, key, ShipmentToHash(s)).Err(); err != nil {
		return fmt.Errorf("failed to update shipment in Redis: %w", err)
	}
	return nil
}

// ScanShipments returns the IDs of shipments whose ID starts with the given
// prefix. Used for short-ID resolution; the photo and item subkeys of each
// shipment are skipped.
func (c *Client) ScanShipments(ctx context.Context, idPrefix string) ([]string, error) {
	pattern := fmt.Sprintf("creel:%s:shipment:%s*", c.instanceName, idPrefix)
	prefix := fmt.Sprintf("creel:%s:shipment:", c.instanceName)

	var matches []string
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), prefix)
		if strings.Contains(id, ":") {
			continue
		}
		matches = append(matches, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan shipments: %w", err)
	}
	return matches, nil
}

// DeleteShipment removes a shipment and its photo and item lists.
// Used to retract the loser of a duplicate burst-opening race.
func (c *Client) DeleteShipment(ctx context.Context, shipmentID string) error {
	keys := []string{
		ShipmentKey(c.instanceName, shipmentID),
		ShipmentPhotosKey(c.instanceName, shipmentID),
		ShipmentItemsKey(c.instanceName, shipmentID),
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete shipment: %w", err)
	}
	return nil
}

// AppendPhoto appends a photo to the shipment's ordered photo list.
// Insertion order is preserved as received; duplicates of the same capture
// are appended, not collapsed.
func (c *Client) AppendPhoto(ctx context.Context, shipmentID string, p Photo) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid photo: %w", err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal photo: %w", err)
	}

	key := ShipmentPhotosKey(c.instanceName, shipmentID)
	if err := c.rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append photo: %w", err)
	}
	return nil
}

// ListPhotos returns the shipment's photos in insertion order.
func (c *Client) ListPhotos(ctx context.Context, shipmentID string) ([]Photo, error) {
	key := ShipmentPhotosKey(c.instanceName, shipmentID)
	raw, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	photos := make([]Photo, 0, len(raw))
	for _, entry := range raw {
		var p Photo
		if err := json.Unmarshal([]byte(entry), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, nil
}

// ClearPhotos removes all photos from a shipment. Used by the
// replace-photos flow before the replacement set arrives.
func (c *Client) ClearPhotos(ctx context.Context, shipmentID string) error {
	key := ShipmentPhotosKey(c.instanceName, shipmentID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear photos: %w", err)
	}
	return nil
}

// AppendIntakeItem appends one accumulated line to an intake session.
func (c *Client) AppendIntakeItem(ctx context.Context, shipmentID string, item IntakeItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal intake item: %w", err)
	}

	key := ShipmentItemsKey(c.instanceName, shipmentID)
	if err := c.rdb.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append intake item: %w", err)
	}
	return nil
}

// ListIntakeItems returns an intake session's items in insertion order.
func (c *Client) ListIntakeItems(ctx context.Context, shipmentID string) ([]IntakeItem, error) {
	key := ShipmentItemsKey(c.instanceName, shipmentID)
	raw, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list intake items: %w", err)
	}

	items := make([]IntakeItem, 0, len(raw))
	for _, entry := range raw {
		var item IntakeItem
		if err := json.Unmarshal([]byte(entry), &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal intake item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// ─── Burst bindings ───────────────────────────────────────────────────────

// BindBurst binds a burst key to a shipment for the given TTL.
// The bind is SETNX-guarded: a live binding is never overwritten, and a
// retired (expired) key yields a fresh bind for a new burst only because the
// old value is gone from the store. Returns false if the key was already
// bound, in which case the caller should treat the item as a continuation.
func (c *Client) BindBurst(ctx context.Context, burstKey string, b BurstBinding, ttl time.Duration) (bool, error) {
	if burstKey == "" {
		return false, fmt.Errorf("burst key cannot be empty")
	}

	data, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("failed to marshal burst binding: %w", err)
	}

	key := BurstBindingKey(c.instanceName, burstKey)
	set, err := c.rdb.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to bind burst key: %w", err)
	}
	return set, nil
}

// LookupBurst returns the binding for a burst key.
// Returns (nil, redis.Nil) if the key was never bound or the binding expired.
func (c *Client) LookupBurst(ctx context.Context, burstKey string) (*BurstBinding, error) {
	key := BurstBindingKey(c.instanceName, burstKey)
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to look up burst key: %w", err)
	}

	var b BurstBinding
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal burst binding: %w", err)
	}
	return &b, nil
}

// ─── Pending prompts ──────────────────────────────────────────────────────

// PutPrompt stores a pending prompt with the given TTL and supersedes any
// live prompt of the same (actor, kind): the superseded token is dropped, so
// a late reply to it resolves to nothing.
func (c *Client) PutPrompt(ctx context.Context, p *Prompt, ttl time.Duration) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid prompt: %w", err)
	}

	idxKey := ActorPromptKey(c.instanceName, p.ActorID, p.Kind)
	if old, err := c.rdb.Get(ctx, idxKey).Result(); err == nil && old != "" {
		if err := c.rdb.Del(ctx, PromptKey(c.instanceName, old)).Err(); err != nil {
			return fmt.Errorf("failed to supersede prompt: %w", err)
		}
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read prompt index: %w", err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal prompt: %w", err)
	}

	if err := c.rdb.Set(ctx, PromptKey(c.instanceName, p.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write prompt: %w", err)
	}
	if err := c.rdb.Set(ctx, idxKey, p.Token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write prompt index: %w", err)
	}
	return nil
}

// ConsumePrompt atomically removes and returns the prompt for a token.
// GETDEL guarantees exactly-once consumption: of two concurrent replies to
// the same prompt, only the first resolves.
// Returns (nil, redis.Nil) if the token is unknown, expired, or already consumed.
func (c *Client) ConsumePrompt(ctx context.Context, token string) (*Prompt, error) {
	raw, err := c.rdb.GetDel(ctx, PromptKey(c.instanceName, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to consume prompt: %w", err)
	}

	var p Prompt
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompt: %w", err)
	}

	// Drop the supersede index if it still points at this token.
	idxKey := ActorPromptKey(c.instanceName, p.ActorID, p.Kind)
	if cur, err := c.rdb.Get(ctx, idxKey).Result(); err == nil && cur == token {
		c.rdb.Del(ctx, idxKey)
	}
	return &p, nil
}

// ActivePrompt returns the live prompt of the given kind for an actor
// without consuming it.
// Returns (nil, redis.Nil) if no such prompt is outstanding.
func (c *Client) ActivePrompt(ctx context.Context, actorID int64, kind PromptKind) (*Prompt, error) {
	token, err := c.rdb.Get(ctx, ActorPromptKey(c.instanceName, actorID, kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read prompt index: %w", err)
	}

	raw, err := c.rdb.Get(ctx, PromptKey(c.instanceName, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read prompt: %w", err)
	}

	var p Prompt
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompt: %w", err)
	}
	return &p, nil
}

// DropPrompt withdraws a pending prompt (user-initiated cancel).
// Dropping an unknown or already-consumed token is not an error.
func (c *Client) DropPrompt(ctx context.Context, token string) error {
	_, err := c.ConsumePrompt(ctx, token)
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// ─── Intake sessions ──────────────────────────────────────────────────────

// StartIntake records an actor's active intake session. A new session
// replaces any previous one for the same actor.
func (c *Client) StartIntake(ctx context.Context, actorID int64, shipmentID string) error {
	if err := c.rdb.Set(ctx, IntakeKey(c.instanceName, actorID), shipmentID, 0).Err(); err != nil {
		return fmt.Errorf("failed to start intake session: %w", err)
	}
	return nil
}

// ActiveIntake returns the actor's active intake shipment ID.
// Returns ("", redis.Nil) if no session is active.
func (c *Client) ActiveIntake(ctx context.Context, actorID int64) (string, error) {
	sid, err := c.rdb.Get(ctx, IntakeKey(c.instanceName, actorID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", redis.Nil
		}
		return "", fmt.Errorf("failed to read intake session: %w", err)
	}
	return sid, nil
}

// ClearIntake ends an actor's intake session.
func (c *Client) ClearIntake(ctx context.Context, actorID int64) error {
	if err := c.rdb.Del(ctx, IntakeKey(c.instanceName, actorID)).Err(); err != nil {
		return fmt.Errorf("failed to clear intake session: %w", err)
	}
	return nil
}

// ─── Roster ───────────────────────────────────────────────────────────────

// UpsertMember writes a roster member and maintains the client-membership
// and manager index sets.
func (c *Client) UpsertMember(ctx context.Context, m *Member) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid member: %w", err)
	}

	if err := c.rdb.HSet(ctx, MemberKey(c.instanceName, m.ChatID), MemberToHash(m)).Err(); err != nil {
		return fmt.Errorf("failed to write member: %w", err)
	}

	if m.ClientID != "" {
		if err := c.rdb.SAdd(ctx, ClientMembersKey(c.instanceName, m.ClientID), m.ChatID).Err(); err != nil {
			return fmt.Errorf("failed to index client member: %w", err)
		}
	}

	managersKey := ManagersKey(c.instanceName)
	if m.Elevated() {
		if err := c.rdb.SAdd(ctx, managersKey, m.ChatID).Err(); err != nil {
			return fmt.Errorf("failed to index manager: %w", err)
		}
	} else {
		if err := c.rdb.SRem(ctx, managersKey, m.ChatID).Err(); err != nil {
			return fmt.Errorf("failed to unindex manager: %w", err)
		}
	}
	return nil
}

// GetMember retrieves a roster member by chat ID.
// Returns (nil, redis.Nil) if the member doesn't exist.
func (c *Client) GetMember(ctx context.Context, chatID int64) (*Member, error) {
	hashData, err := c.rdb.HGetAll(ctx, MemberKey(c.instanceName, chatID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read member: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}
	return HashToMember(hashData)
}

// AssignManagerClient explicitly scopes a manager to a client, for the
// by-client recipient policy.
func (c *Client) AssignManagerClient(ctx context.Context, chatID int64, clientID string) error {
	if err := c.rdb.SAdd(ctx, ClientManagersKey(c.instanceName, clientID), chatID).Err(); err != nil {
		return fmt.Errorf("failed to assign manager to client: %w", err)
	}
	return nil
}

// RosterForClient returns the members linked to a client card.
// Members whose hash has vanished are skipped.
func (c *Client) RosterForClient(ctx context.Context, clientID string) ([]Member, error) {
	return c.membersOfSet(ctx, ClientMembersKey(c.instanceName, clientID))
}

// ManagersAll returns every member indexed as elevated.
func (c *Client) ManagersAll(ctx context.Context) ([]Member, error) {
	return c.membersOfSet(ctx, ManagersKey(c.instanceName))
}

// ManagersForClient returns the managers explicitly scoped to a client.
func (c *Client) ManagersForClient(ctx context.Context, clientID string) ([]Member, error) {
	return c.membersOfSet(ctx, ClientManagersKey(c.instanceName, clientID))
}

func (c *Client) membersOfSet(ctx context.Context, setKey string) ([]Member, error) {
	ids, err := c.rdb.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read member set: %w", err)
	}

	members := make([]Member, 0, len(ids))
	for _, id := range ids {
		hashData, err := c.rdb.HGetAll(ctx, fmt.Sprintf("creel:%s:member:%s", c.instanceName, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read member %s: %w", id, err)
		}
		if len(hashData) == 0 {
			continue
		}
		m, err := HashToMember(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize member %s: %w", id, err)
		}
		members = append(members, *m)
	}
	return members, nil
}

// ─── Pub/Sub bridge ───────────────────────────────────────────────────────

// PublishInboundItem publishes an inbound item for the engine to process.
// Transport adapters call this as chat messages arrive.
func (c *Client) PublishInboundItem(ctx context.Context, item *InboundItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal inbound item: %w", err)
	}
	if err := c.rdb.Publish(ctx, InboundItemsChannel(c.instanceName), data).Err(); err != nil {
		return fmt.Errorf("failed to publish inbound item: %w", err)
	}
	return nil
}

// PublishOutboundSend publishes an outbound send for a transport adapter to
// execute. Validates the send before publishing.
func (c *Client) PublishOutboundSend(ctx context.Context, send *OutboundSend) error {
	if err := send.Validate(); err != nil {
		return fmt.Errorf("invalid send: %w", err)
	}

	data, err := json.Marshal(send)
	if err != nil {
		return fmt.Errorf("failed to marshal send: %w", err)
	}
	if err := c.rdb.Publish(ctx, OutboundSendsChannel(c.instanceName), data).Err(); err != nil {
		return fmt.Errorf("failed to publish send: %w", err)
	}
	return nil
}

// ItemSubscription represents an active Pub/Sub subscription to inbound items.
// Call Close() to unsubscribe and release resources.
type ItemSubscription struct {
	events <-chan *InboundItem
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of inbound items.
func (s *ItemSubscription) Events() <-chan *InboundItem {
	return s.events
}

// Errors returns the channel of subscription errors.
func (s *ItemSubscription) Errors() <-chan error {
	return s.errors
}

// Close unsubscribes and releases resources. Safe to call multiple times.
func (s *ItemSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeInboundItems subscribes to the inbound item channel.
// Items are delivered on Events(); malformed payloads surface on Errors()
// and are skipped.
func (c *Client) SubscribeInboundItems(ctx context.Context) (*ItemSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, InboundItemsChannel(c.instanceName))

	eventsChan := make(chan *InboundItem, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var item InboundItem
				if err := json.Unmarshal([]byte(msg.Payload), &item); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal inbound item: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &item:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &ItemSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// SendSubscription represents an active Pub/Sub subscription to outbound
// sends. Transport adapters consume it to execute deliveries.
type SendSubscription struct {
	events <-chan *OutboundSend
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of outbound sends.
func (s *SendSubscription) Events() <-chan *OutboundSend {
	return s.events
}

// Errors returns the channel of subscription errors.
func (s *SendSubscription) Errors() <-chan error {
	return s.errors
}

// Close unsubscribes and releases resources. Safe to call multiple times.
func (s *SendSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeOutboundSends subscribes to the outbound send channel.
func (c *Client) SubscribeOutboundSends(ctx context.Context) (*SendSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, OutboundSendsChannel(c.instanceName))

	eventsChan := make(chan *OutboundSend, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var send OutboundSend
				if err := json.Unmarshal([]byte(msg.Payload), &send); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal send: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &send:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &SendSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
