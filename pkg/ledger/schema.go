package ledger

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple Creel instances to safely coexist on a single Redis server.
//
// Key pattern: creel:{instance_name}:{entity}:{id}
// Channel pattern: creel:{instance_name}:{direction}_items / _sends

// ClientKey returns the Redis key for a client card hash.
// Pattern: creel:{instance_name}:client:{client_id}
func ClientKey(instanceName, clientID string) string {
	return fmt.Sprintf("creel:%s:client:%s", instanceName, clientID)
}

// ClientCodeKey returns the Redis key for the code -> client ID index.
// Pattern: creel:{instance_name}:client_code:{code}
func ClientCodeKey(instanceName, code string) string {
	return fmt.Sprintf("creel:%s:client_code:%s", instanceName, code)
}

// ShipmentKey returns the Redis key for a shipment hash.
// Pattern: creel:{instance_name}:shipment:{shipment_id}
func ShipmentKey(instanceName, shipmentID string) string {
	return fmt.Sprintf("creel:%s:shipment:%s", instanceName, shipmentID)
}

// ShipmentPhotosKey returns the Redis key for a shipment's photo list.
// The list preserves insertion order; entries are JSON-encoded photos.
// Pattern: creel:{instance_name}:shipment:{shipment_id}:photos
func ShipmentPhotosKey(instanceName, shipmentID string) string {
	return fmt.Sprintf("creel:%s:shipment:%s:photos", instanceName, shipmentID)
}

// ShipmentItemsKey returns the Redis key for an intake session's item list.
// Pattern: creel:{instance_name}:shipment:{shipment_id}:items
func ShipmentItemsKey(instanceName, shipmentID string) string {
	return fmt.Sprintf("creel:%s:shipment:%s:items", instanceName, shipmentID)
}

// BurstBindingKey returns the Redis key for a burst binding. The value is a
// JSON-encoded BurstBinding and carries the binding TTL, so expired bindings
// vanish from the store without application bookkeeping.
// Pattern: creel:{instance_name}:burst:{burst_key}
func BurstBindingKey(instanceName, burstKey string) string {
	return fmt.Sprintf("creel:%s:burst:%s", instanceName, burstKey)
}

// PromptKey returns the Redis key for a pending prompt. The value is a
// JSON-encoded Prompt stored with the prompt TTL.
// Pattern: creel:{instance_name}:prompt:{token}
func PromptKey(instanceName, token string) string {
	return fmt.Sprintf("creel:%s:prompt:%s", instanceName, token)
}

// ActorPromptKey returns the Redis key for the (actor, kind) -> token index
// used to supersede a previous prompt of the same kind.
// Pattern: creel:{instance_name}:actor:{actor_id}:prompt:{kind}
func ActorPromptKey(instanceName string, actorID int64, kind PromptKind) string {
	return fmt.Sprintf("creel:%s:actor:%d:prompt:%s", instanceName, actorID, kind)
}

// IntakeKey returns the Redis key for an actor's active intake session.
// The value is the draft shipment ID.
// Pattern: creel:{instance_name}:intake:{actor_id}
func IntakeKey(instanceName string, actorID int64) string {
	return fmt.Sprintf("creel:%s:intake:%d", instanceName, actorID)
}

// MemberKey returns the Redis key for a roster member hash.
// Pattern: creel:{instance_name}:member:{chat_id}
func MemberKey(instanceName string, chatID int64) string {
	return fmt.Sprintf("creel:%s:member:%d", instanceName, chatID)
}

// ClientMembersKey returns the Redis key for the set of chat IDs linked to
// a client card.
// Pattern: creel:{instance_name}:client:{client_id}:members
func ClientMembersKey(instanceName, clientID string) string {
	return fmt.Sprintf("creel:%s:client:%s:members", instanceName, clientID)
}

// ManagersKey returns the Redis key for the set of elevated chat IDs.
// Pattern: creel:{instance_name}:managers
func ManagersKey(instanceName string) string {
	return fmt.Sprintf("creel:%s:managers", instanceName)
}

// ClientManagersKey returns the Redis key for the set of managers explicitly
// scoped to a client, used by the by-client recipient policy.
// Pattern: creel:{instance_name}:client:{client_id}:managers
func ClientManagersKey(instanceName, clientID string) string {
	return fmt.Sprintf("creel:%s:client:%s:managers", instanceName, clientID)
}

// InboundItemsChannel returns the Pub/Sub channel transport adapters publish
// inbound items to.
// Pattern: creel:{instance_name}:inbound_items
func InboundItemsChannel(instanceName string) string {
	return fmt.Sprintf("creel:%s:inbound_items", instanceName)
}

// OutboundSendsChannel returns the Pub/Sub channel the engine publishes
// outbound sends to for transport adapters to execute.
// Pattern: creel:{instance_name}:outbound_sends
func OutboundSendsChannel(instanceName string) string {
	return fmt.Sprintf("creel:%s:outbound_sends", instanceName)
}
