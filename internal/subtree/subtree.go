// Package subtree implements the Subtree Registry: the bounded, ordered
// list of link addresses a node reports as "reachable through me" in its
// topology reports — always headed by the node's own address,
// deduplicated, and capped at tunables.MaxSubtreeSize.
//
// The append/remove-first-occurrence shape mirrors a conventional
// fixed-size DHT successor list, generalized from a ring of successors to
// an unordered coverage set of descendant addresses.
package subtree

import (
	"ConvergeCast/internal/meshaddr"
	"ConvergeCast/internal/tunables"
)

// Registry holds the bounded set of addresses reachable through this
// node's subtree, self always first.
type Registry struct {
	self    meshaddr.Addr
	members []meshaddr.Addr
	cap     int
}

// New creates a Registry for self, with self always occupying slot 0.
func New(self meshaddr.Addr) *Registry {
	return &Registry{
		self:    self,
		members: []meshaddr.Addr{self},
		cap:     tunables.MaxSubtreeSize,
	}
}

// Self returns the owning node's address.
func (r *Registry) Self() meshaddr.Addr { return r.self }

// Len returns the number of members currently registered, including self.
func (r *Registry) Len() int { return len(r.members) }

// Contains reports whether a is already a member of this subtree.
func (r *Registry) Contains(a meshaddr.Addr) bool {
	for _, m := range r.members {
		if m == a {
			return true
		}
	}
	return false
}

// Members returns a copy of the current membership, self first.
func (r *Registry) Members() []meshaddr.Addr {
	out := make([]meshaddr.Addr, len(r.members))
	copy(out, r.members)
	return out
}

// AppendIfAbsent adds a to the registry unless it is already a member,
// is the zero address, or the registry is at capacity. It returns false
// in any of those cases. Self can never be re-added or removed.
func (r *Registry) AppendIfAbsent(a meshaddr.Addr) bool {
	if a.IsNull() || r.Contains(a) {
		return false
	}
	if len(r.members) >= r.cap {
		return false
	}
	r.members = append(r.members, a)
	return true
}

// RemoveFirstOccurrence deletes the first occurrence of a, refusing to
// remove self (slot 0 is reserved). Returns true if something was removed.
func (r *Registry) RemoveFirstOccurrence(a meshaddr.Addr) bool {
	if a == r.self {
		return false
	}
	for i, m := range r.members {
		if m == a {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}
