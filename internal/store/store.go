// Package store implements the capacity-bounded, transposition-LRU
// sequence that Rapto keeps every Object in. It is a plain slice, not
// a hash index: lookups are linear scans from the hot end, with a
// short-key direct-compare / long-key hash-gated-compare fast path.
package store

import (
	"errors"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/raptodb/raptodb/internal/objcodec"
)

// longKeyThreshold is the key length above which comparisons are
// hash-gated instead of direct byte comparisons (the "advanced
// compare" described in the glossary).
const longKeyThreshold = 16

var (
	// ErrExceededSpaceLimit is returned by Put when admitting the new
	// or updated object would make cap_remaining underflow.
	ErrExceededSpaceLimit = errors.New("exceeded space limit")
	// ErrKeyReplacementExist is returned by Rename when the new key
	// already names a live object.
	ErrKeyReplacementExist = errors.New("key replacement exists")
	// ErrKeyNotFound is returned by any operation addressing a key
	// that is not present.
	ErrKeyNotFound = errors.New("key not found")
	// ErrMismatchType is returned when an update's value type does
	// not match the existing object's field tag and no type-changing
	// path applies.
	ErrMismatchType = errors.New("mismatch type")
)

// Store is an ordered sequence of Objects with a capacity budget in
// bytes. Index 0 is the cold end (least-recently-used, eviction
// candidate); the last index is the hot end (most-recently-used).
//
// Store is not safe for concurrent use. It is confined to a single
// executor goroutine by design — see the resolver/server package.
type Store struct {
	objects      []*objcodec.Object
	capRemaining uint64
	capacity     uint64
}

// New creates an empty Store with the given total capacity in bytes.
func New(capacity uint64) *Store {
	return &Store{capacity: capacity, capRemaining: capacity}
}

// Capacity returns the store's total configured capacity in bytes.
func (s *Store) Capacity() uint64 { return s.capacity }

// CapRemaining returns the number of unused capacity bytes.
func (s *Store) CapRemaining() uint64 { return s.capRemaining }

// Len returns the number of live objects.
func (s *Store) Len() int { return len(s.objects) }

// keyEqual implements the "advanced compare": length check first,
// then direct byte comparison for short keys, else a 64-bit
// fingerprint gate before falling back to a byte comparison.
func keyEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) <= longKeyThreshold {
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	if xxhash.Sum64(a) != xxhash.Sum64(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// search scans from the hot end (last index) toward the cold end and
// returns the index of the first key-equal object, or -1.
func (s *Store) search(key []byte) int {
	for i := len(s.objects) - 1; i >= 0; i-- {
		if keyEqual(s.objects[i].Key, key) {
			return i
		}
	}
	return -1
}

// promote applies the transposition heuristic: if i is not already
// hot-most, swap it one position toward the hot end and return the
// new index; otherwise return i unchanged.
func (s *Store) promote(i int) int {
	last := len(s.objects) - 1
	if i >= last {
		return i
	}
	s.objects[i], s.objects[i+1] = s.objects[i+1], s.objects[i]
	return i + 1
}

// Search returns the index of key, promoting it by one position
// toward the hot end on a hit. Returns -1 on a miss.
func (s *Store) Search(key []byte) int {
	i := s.search(key)
	if i < 0 {
		return -1
	}
	i = s.promote(i)
	s.objects[i].Metadata.Touch()
	return i
}

// Get returns the object for key (after promotion) or nil.
func (s *Store) Get(key []byte) *objcodec.Object {
	i := s.Search(key)
	if i < 0 {
		return nil
	}
	return s.objects[i]
}

// Peek returns the object for key without promoting or touching it.
// Used by read-only introspection commands like CHECK, SIZE, DUMP.
func (s *Store) Peek(key []byte) *objcodec.Object {
	i := s.search(key)
	if i < 0 {
		return nil
	}
	return s.objects[i]
}

func (s *Store) debit(n uint64) error {
	if n > s.capRemaining {
		return ErrExceededSpaceLimit
	}
	s.capRemaining -= n
	return nil
}

func (s *Store) credit(n uint64) {
	s.capRemaining += n
}

// Put inserts a new object or updates an existing one for key,
// returning its resulting index.
//
// On a missing key: size(obj) is debited from cap_remaining (failing
// with ErrExceededSpaceLimit on underflow), and the object is
// appended at the hot end.
//
// On an existing key with the same field tag: integer/decimal values
// are overwritten in place; string values are only reallocated if the
// length differs. Capacity is NOT re-debited for a same-type string
// length change — see the design notes on this known gap.
//
// On an existing key with a different field tag: the old object's
// size is credited back, a new object is built, metadata is carried
// over with one access bump, and the new size is debited.
func (s *Store) Put(key []byte, field objcodec.Field) (int, error) {
	if i := s.search(key); i >= 0 {
		obj := s.objects[i]
		if obj.Field.Tag == field.Tag {
			switch field.Tag {
			case objcodec.FieldInteger:
				obj.Field.Integer = field.Integer
			case objcodec.FieldDecimal:
				obj.Field.Decimal = field.Decimal
			case objcodec.FieldString:
				if len(obj.Field.String) != len(field.String) {
					obj.Field.String = make([]byte, len(field.String))
				}
				copy(obj.Field.String, field.String)
			}
			obj.Metadata.Touch()
			return s.promote(i), nil
		}

		oldSize := objcodec.Size(obj)
		newObj := &objcodec.Object{Key: obj.Key, Field: field, Metadata: obj.Metadata}
		newSize := objcodec.Size(newObj)

		s.credit(oldSize)
		if err := s.debit(newSize); err != nil {
			s.debit(oldSize) //nolint:errcheck // reverting the credit above; cannot itself fail
			return 0, err
		}
		newObj.Metadata.Touch()
		s.objects[i] = newObj
		return s.promote(i), nil
	}

	obj := &objcodec.Object{
		Key:      append([]byte(nil), key...),
		Field:    field,
		Metadata: objcodec.Metadata{AccessTimes: 1, LastAccess: objcodec.NowMicros()},
	}
	size := objcodec.Size(obj)
	if err := s.debit(size); err != nil {
		return 0, err
	}
	s.objects = append(s.objects, obj)
	return len(s.objects) - 1, nil
}

// Update adds delta to the numeric value stored at key (saturating
// for integers), in place, returning the resulting value as either an
// integer or a decimal depending on the existing field tag.
func (s *Store) Update(key []byte, deltaInt int64, deltaDec float64, isInt bool) (*objcodec.Object, error) {
	i := s.search(key)
	if i < 0 {
		return nil, ErrKeyNotFound
	}
	obj := s.objects[i]
	switch obj.Field.Tag {
	case objcodec.FieldInteger:
		if !isInt {
			return nil, ErrMismatchType
		}
		obj.Field.Integer = saturatingAdd(obj.Field.Integer, deltaInt)
	case objcodec.FieldDecimal:
		if isInt {
			obj.Field.Decimal += float64(deltaInt)
		} else {
			obj.Field.Decimal += deltaDec
		}
	default:
		return nil, ErrMismatchType
	}
	obj.Metadata.Touch()
	s.promote(i)
	return obj, nil
}

func saturatingAdd(a, b int64) int64 {
	sum := a + b
	if b > 0 && sum < a {
		return 1<<63 - 1
	}
	if b < 0 && sum > a {
		return -(1 << 63)
	}
	return sum
}

// RemoveAt deletes the object at index i, crediting its size back.
func (s *Store) RemoveAt(i int) error {
	if i < 0 || i >= len(s.objects) {
		return ErrKeyNotFound
	}
	s.credit(objcodec.Size(s.objects[i]))
	s.objects = append(s.objects[:i], s.objects[i+1:]...)
	return nil
}

// Delete removes the object for key, if present.
func (s *Store) Delete(key []byte) error {
	i := s.search(key)
	if i < 0 {
		return ErrKeyNotFound
	}
	return s.RemoveAt(i)
}

// Rename replaces the key bytes of the object stored at oldKey with
// newKey, failing if newKey already names a live object.
func (s *Store) Rename(oldKey, newKey []byte) error {
	if s.search(newKey) >= 0 {
		return ErrKeyReplacementExist
	}
	i := s.search(oldKey)
	if i < 0 {
		return ErrKeyNotFound
	}
	s.objects[i].Key = append([]byte(nil), newKey...)
	return nil
}

// ListKeys returns every key, ordered hot end to cold end (matching
// the LIST command's "hot→cold" contract).
func (s *Store) ListKeys() [][]byte {
	keys := make([][]byte, len(s.objects))
	for i := range s.objects {
		keys[i] = s.objects[len(s.objects)-1-i].Key
	}
	return keys
}

// All returns the live objects in their current index order (cold to
// hot), for iteration by the snapshot engine and introspection
// commands.
func (s *Store) All() []*objcodec.Object {
	return s.objects
}

// SwapWithHead swaps key's slot with the current hot-end slot. O(1)
// but, unlike MoveToHead, does not preserve the relative order of the
// remaining elements.
func (s *Store) SwapWithHead(key []byte) error {
	i := s.search(key)
	if i < 0 {
		return ErrKeyNotFound
	}
	last := len(s.objects) - 1
	s.objects[i], s.objects[last] = s.objects[last], s.objects[i]
	return nil
}

// SwapWithTail swaps key's slot with the current cold-end slot.
func (s *Store) SwapWithTail(key []byte) error {
	i := s.search(key)
	if i < 0 {
		return ErrKeyNotFound
	}
	s.objects[i], s.objects[0] = s.objects[0], s.objects[i]
	return nil
}

// MoveToHead removes key's object and re-inserts it at the hot end,
// preserving the relative order of the remaining elements.
func (s *Store) MoveToHead(key []byte) error {
	i := s.search(key)
	if i < 0 {
		return ErrKeyNotFound
	}
	obj := s.objects[i]
	s.objects = append(s.objects[:i], s.objects[i+1:]...)
	s.objects = append(s.objects, obj)
	return nil
}

// MoveToTail removes key's object and re-inserts it at the cold end.
func (s *Store) MoveToTail(key []byte) error {
	i := s.search(key)
	if i < 0 {
		return ErrKeyNotFound
	}
	obj := s.objects[i]
	s.objects = append(s.objects[:i], s.objects[i+1:]...)
	s.objects = append([]*objcodec.Object{obj}, s.objects...)
	return nil
}

// Prefetch stably sorts the whole sequence by LastAccess ascending
// (cold end gets the least-recently-used object, hot end the most
// recent), using a stable sort so ties keep their current order.
func (s *Store) Prefetch() {
	sort.SliceStable(s.objects, func(i, j int) bool {
		return s.objects[i].Metadata.LastAccess < s.objects[j].Metadata.LastAccess
	})
}

// Erase drops every object and resets cap_remaining to the full
// capacity.
func (s *Store) Erase() {
	s.objects = nil
	s.capRemaining = s.capacity
}

// Append inserts obj directly at the hot end without going through
// Put's type-merge logic, debiting its size. Used by the snapshot
// loader and RESTORE, which already have a fully-formed Object.
func (s *Store) Append(obj *objcodec.Object) error {
	if s.search(obj.Key) >= 0 {
		return ErrKeyReplacementExist
	}
	if err := s.debit(objcodec.Size(obj)); err != nil {
		return err
	}
	s.objects = append(s.objects, obj)
	return nil
}
