package mast

import "sync"

// nodeCache memoizes decoded nodes for the lifetime of one Store, so that
// the several Open calls a single insert or remove issues against the same
// hash (e.g. re-opening a node just written earlier in the same path
// rewrite) do not each pay for a fresh table read and decode. It caches
// decoded *Node values rather than raw bytes and defers durability
// entirely to the kvstore.Tx the Store is bound to — there is no separate
// commit step here, because the transaction already provides atomicity.
type nodeCache struct {
	mu    sync.RWMutex
	nodes map[Hash]*Node
}

func newNodeCache() *nodeCache {
	return &nodeCache{nodes: make(map[Hash]*Node)}
}

func (c *nodeCache) get(h Hash) (*Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[h]
	return n, ok
}

func (c *nodeCache) put(h Hash, n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[h] = n
}

func (c *nodeCache) forget(h Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, h)
}

func (c *nodeCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}
