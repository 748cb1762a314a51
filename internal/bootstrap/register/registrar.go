// Package register implements the backends a mesh node can announce its
// own endpoint to once it has joined, independent of the discovery side
// handled by internal/bootstrap.
package register

import "context"

// Registrar is a generic interface for node registration backends
// (Route53, CoreDNS/etcd, ...).
type Registrar interface {
	RegisterNode(ctx context.Context, nodeID, targetHost string, port int) error
	DeregisterNode(ctx context.Context, nodeID, targetHost string, port int) error
	RenewNode(ctx context.Context, nodeID, targetHost string, port int) error
	Close() error
}
