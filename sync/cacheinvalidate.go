package sync

// BroadcastExpire wraps a cache-expiry intent in the envelope and
// publishes it via the Gossip Relay. This is the entry point the local
// configuration collaborator calls; it is not itself gossiped state, so it
// goes straight to broadcast rather than through handleInboundMessage.
func (h *Handler) BroadcastExpire(configName string, scope Scope, id string) {
	msgID := h.nextID()
	h.broadcastExcept(expireConfigCacheMessage(h.table.SelfName(), msgID, configName, scope, id), nil)
	h.metrics.ExpiresBroadcast.Inc()
}

// onExpireConfigCache hands an inbound expiry verbatim to the local
// configuration cache sink.
func (h *Handler) onExpireConfigCache(m *Message) {
	h.cacheSink.ExpireCache(m.ConfigName, m.Scope, m.CacheID)
	h.metrics.ExpiresReceived.Inc()
}
