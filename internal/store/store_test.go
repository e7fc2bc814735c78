package store

import (
	"bytes"
	"testing"

	"github.com/raptodb/raptodb/internal/objcodec"
)

func intField(v int64) objcodec.Field { return objcodec.Field{Tag: objcodec.FieldInteger, Integer: v} }

func TestPutAndSearchPromotes(t *testing.T) {
	s := New(1 << 20)
	for i, k := range []string{"a", "b", "c"} {
		if _, err := s.Put([]byte(k), intField(int64(i))); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	// hot -> cold is c, b, a
	if got := keysOf(s); got != "c b a" {
		t.Fatalf("list = %q, want %q", got, "c b a")
	}

	s.Search([]byte("a"))
	if got := keysOf(s); got != "c a b" {
		t.Fatalf("after promoting a: list = %q, want %q", got, "c a b")
	}
}

func TestPromotionIdempotentAtHotMost(t *testing.T) {
	s := New(1 << 20)
	s.Put([]byte("a"), intField(1))
	s.Put([]byte("b"), intField(2))

	before := keysOf(s)
	s.Search([]byte("b")) // b is already hot-most
	after := keysOf(s)
	if before != after {
		t.Fatalf("promoting hot-most changed order: %q -> %q", before, after)
	}
}

func TestSearchMiss(t *testing.T) {
	s := New(1 << 20)
	s.Put([]byte("a"), intField(1))
	if i := s.Search([]byte("missing")); i != -1 {
		t.Fatalf("search(missing) = %d, want -1", i)
	}
}

func TestCapacityAccounting(t *testing.T) {
	s := New(1 << 20)
	keys := []string{"alpha", "beta", "gamma", "delta"}
	for i, k := range keys {
		if _, err := s.Put([]byte(k), intField(int64(i))); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	var sum uint64
	for _, obj := range s.All() {
		sum += objcodec.Size(obj)
	}
	if sum+s.CapRemaining() != s.Capacity() {
		t.Fatalf("sum(size)+cap_remaining = %d, want capacity %d", sum+s.CapRemaining(), s.Capacity())
	}

	s.Delete([]byte("beta"))
	sum = 0
	for _, obj := range s.All() {
		sum += objcodec.Size(obj)
	}
	if sum+s.CapRemaining() != s.Capacity() {
		t.Fatalf("after delete: sum(size)+cap_remaining = %d, want capacity %d", sum+s.CapRemaining(), s.Capacity())
	}
}

func TestPutExceedsSpaceLimit(t *testing.T) {
	s := New(8) // smaller than even one object's fixed overhead
	if _, err := s.Put([]byte("k"), intField(1)); err != ErrExceededSpaceLimit {
		t.Fatalf("got %v, want ErrExceededSpaceLimit", err)
	}
	if s.Len() != 0 {
		t.Fatalf("store mutated on failed put")
	}
}

func TestRenameConflict(t *testing.T) {
	s := New(1 << 20)
	s.Put([]byte("a"), intField(1))
	s.Put([]byte("b"), intField(2))
	if err := s.Rename([]byte("a"), []byte("b")); err != ErrKeyReplacementExist {
		t.Fatalf("got %v, want ErrKeyReplacementExist", err)
	}
}

func TestRenameMissing(t *testing.T) {
	s := New(1 << 20)
	if err := s.Rename([]byte("a"), []byte("b")); err != ErrKeyNotFound {
		t.Fatalf("got %v, want ErrKeyNotFound", err)
	}
}

func TestMoveToHeadPreservesRelativeOrder(t *testing.T) {
	s := New(1 << 20)
	for i, k := range []string{"a", "b", "c", "d"} {
		s.Put([]byte(k), intField(int64(i)))
	}
	// hot->cold: d c b a
	s.MoveToHead([]byte("a"))
	if got := keysOf(s); got != "a d c b" {
		t.Fatalf("list = %q, want %q", got, "a d c b")
	}
}

func TestSwapWithHeadBreaksOrder(t *testing.T) {
	s := New(1 << 20)
	for i, k := range []string{"a", "b", "c"} {
		s.Put([]byte(k), intField(int64(i)))
	}
	// hot->cold: c b a
	s.SwapWithHead([]byte("a"))
	if got := keysOf(s); got != "a b c" {
		t.Fatalf("list = %q, want %q", got, "a b c")
	}
}

func TestPrefetchOrdersByLastAccessAscending(t *testing.T) {
	s := New(1 << 20)
	s.Put([]byte("a"), intField(1))
	s.objects[0].Metadata.LastAccess = 300
	s.Put([]byte("b"), intField(2))
	s.objects[1].Metadata.LastAccess = 100
	s.Put([]byte("c"), intField(3))
	s.objects[2].Metadata.LastAccess = 200

	s.Prefetch()
	var got []string
	for _, obj := range s.All() {
		got = append(got, string(obj.Key))
	}
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("prefetch order = %v, want %v", got, want)
		}
	}
}

func TestUpdateTypeMismatch(t *testing.T) {
	s := New(1 << 20)
	s.Put([]byte("k"), intField(10))
	if _, err := s.Update([]byte("k"), 0, 0.5, false); err != ErrMismatchType {
		t.Fatalf("got %v, want ErrMismatchType", err)
	}
}

func TestUpdateIntegerSaturates(t *testing.T) {
	s := New(1 << 20)
	s.Put([]byte("k"), intField(1<<62))
	obj, err := s.Update([]byte("k"), 1<<62, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if obj.Field.Integer != 1<<63-1 {
		t.Fatalf("integer = %d, want saturated max", obj.Field.Integer)
	}
}

func keysOf(s *Store) string {
	var buf bytes.Buffer
	for i, k := range s.ListKeys() {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.Write(k)
	}
	return buf.String()
}
