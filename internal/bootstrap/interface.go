// Package bootstrap resolves the set of peer endpoints a node dials before
// it has heard a single beacon, and optionally announces this node's own
// endpoint so later joiners can find it.
package bootstrap

import "context"

// Bootstrap discovers peer endpoints ("host:port" strings for udplink, or
// pre-formatted mesh addresses for a static simulation roster) and,
// optionally, registers this node's own endpoint with the backing
// directory so it can be discovered in turn.
type Bootstrap interface {
	// Discover returns the currently known peer endpoints.
	Discover(ctx context.Context) ([]string, error)
	// Register announces selfEndpoint under nodeID. A no-op for backends
	// with no registration step (e.g. a static peer list).
	Register(ctx context.Context, nodeID, selfEndpoint string) error
	// Deregister withdraws a previous Register call.
	Deregister(ctx context.Context, nodeID, selfEndpoint string) error
}
