package subtree

import (
	"testing"

	"ConvergeCast/internal/meshaddr"
	"ConvergeCast/internal/tunables"
)

func addr(n uint16) meshaddr.Addr { return meshaddr.FromUint16(n) }

func TestNewStartsWithSelfOnly(t *testing.T) {
	self := addr(1)
	r := New(self)
	if r.Len() != 1 || !r.Contains(self) {
		t.Fatalf("expected registry to start with just self, got %v", r.Members())
	}
}

func TestAppendIfAbsentDedupes(t *testing.T) {
	r := New(addr(1))
	if !r.AppendIfAbsent(addr(2)) {
		t.Fatal("first append of addr(2) should succeed")
	}
	if r.AppendIfAbsent(addr(2)) {
		t.Fatal("duplicate append should be rejected")
	}
	if r.Len() != 2 {
		t.Fatalf("expected len 2, got %d", r.Len())
	}
}

func TestAppendRejectsNullAndSelf(t *testing.T) {
	r := New(addr(1))
	if r.AppendIfAbsent(meshaddr.Null) {
		t.Fatal("null address must never be appended")
	}
	if r.AppendIfAbsent(addr(1)) {
		t.Fatal("self is already a member, must not duplicate")
	}
}

func TestAppendRespectsCapacity(t *testing.T) {
	r := New(addr(1))
	for i := uint16(2); i < uint16(1+tunables.MaxSubtreeSize); i++ {
		if !r.AppendIfAbsent(addr(i)) {
			t.Fatalf("expected append of addr(%d) to succeed before capacity reached", i)
		}
	}
	if r.Len() != tunables.MaxSubtreeSize {
		t.Fatalf("expected registry full at %d, got %d", tunables.MaxSubtreeSize, r.Len())
	}
	if r.AppendIfAbsent(addr(999)) {
		t.Fatal("append beyond capacity must be rejected")
	}
}

func TestRemoveFirstOccurrenceSparesSelf(t *testing.T) {
	self := addr(1)
	r := New(self)
	r.AppendIfAbsent(addr(2))

	if r.RemoveFirstOccurrence(self) {
		t.Fatal("self must never be removable")
	}
	if !r.RemoveFirstOccurrence(addr(2)) {
		t.Fatal("expected removal of addr(2) to succeed")
	}
	if r.Contains(addr(2)) {
		t.Fatal("addr(2) should no longer be a member")
	}
	if r.Len() != 1 {
		t.Fatalf("expected len 1 after removal, got %d", r.Len())
	}
}
