package objcodec

import (
	"encoding/binary"
	"math"
)

// codec errors. These are resolver-visible; the dispatcher maps them
// onto the fixed wire phrases in raptoerr.
type CodecError struct {
	msg string
}

func (e *CodecError) Error() string { return e.msg }

var (
	// ErrTypeOverflow is returned when a key or string length exceeds
	// what the wire layout can represent.
	ErrTypeOverflow = &CodecError{"type overflow"}
	// ErrEndOfStream is returned when the input is truncated before a
	// complete Object could be read.
	ErrEndOfStream = &CodecError{"end of stream"}
	// ErrUnsupportedType is returned when a field tag byte does not
	// match any known variant.
	ErrUnsupportedType = &CodecError{"unsupported type"}
)

// Serialize produces the canonical byte layout for obj:
//
//	u8  key_len
//	key_len bytes  key
//	i64 access_times
//	i64 last_access
//	u8  field_tag
//	payload (variant-dependent)
func Serialize(obj *Object) ([]byte, error) {
	if len(obj.Key) == 0 || len(obj.Key) > MaxKeyLen {
		return nil, ErrTypeOverflow
	}
	if obj.Field.Tag == FieldString && uint64(len(obj.Field.String)) > MaxStringLen {
		return nil, ErrTypeOverflow
	}

	size := 1 + len(obj.Key) + 8 + 8 + 1
	switch obj.Field.Tag {
	case FieldInteger, FieldDecimal:
		size += 8
	case FieldString:
		size += 8 + len(obj.Field.String)
	default:
		return nil, ErrUnsupportedType
	}

	buf := make([]byte, size)
	off := 0
	buf[off] = byte(len(obj.Key))
	off++
	off += copy(buf[off:], obj.Key)

	binary.LittleEndian.PutUint64(buf[off:], uint64(obj.Metadata.AccessTimes))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(obj.Metadata.LastAccess))
	off += 8

	buf[off] = byte(obj.Field.Tag)
	off++

	switch obj.Field.Tag {
	case FieldInteger:
		binary.LittleEndian.PutUint64(buf[off:], uint64(obj.Field.Integer))
	case FieldDecimal:
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(obj.Field.Decimal))
	case FieldString:
		binary.LittleEndian.PutUint64(buf[off:], uint64(len(obj.Field.String)))
		off += 8
		copy(buf[off:], obj.Field.String)
	}

	return buf, nil
}

// Deserialize parses the canonical layout from the front of b and
// returns the Object along with the number of bytes consumed.
func Deserialize(b []byte) (*Object, int, error) {
	if len(b) < 1 {
		return nil, 0, ErrEndOfStream
	}
	keyLen := int(b[0])
	off := 1
	if keyLen == 0 || keyLen > MaxKeyLen {
		return nil, 0, ErrTypeOverflow
	}
	if len(b) < off+keyLen+8+8+1 {
		return nil, 0, ErrEndOfStream
	}

	key := make([]byte, keyLen)
	copy(key, b[off:off+keyLen])
	off += keyLen

	accessTimes := int64(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	lastAccess := int64(binary.LittleEndian.Uint64(b[off:]))
	off += 8

	tag := FieldTag(b[off])
	off++

	obj := &Object{
		Key: key,
		Metadata: Metadata{
			AccessTimes: accessTimes,
			LastAccess:  lastAccess,
		},
	}

	switch tag {
	case FieldInteger:
		if len(b) < off+8 {
			return nil, 0, ErrEndOfStream
		}
		obj.Field = Field{Tag: FieldInteger, Integer: int64(binary.LittleEndian.Uint64(b[off:]))}
		off += 8
	case FieldDecimal:
		if len(b) < off+8 {
			return nil, 0, ErrEndOfStream
		}
		obj.Field = Field{Tag: FieldDecimal, Decimal: math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))}
		off += 8
	case FieldString:
		if len(b) < off+8 {
			return nil, 0, ErrEndOfStream
		}
		strLen := binary.LittleEndian.Uint64(b[off:])
		off += 8
		if strLen > MaxStringLen {
			return nil, 0, ErrTypeOverflow
		}
		if uint64(len(b)-off) < strLen {
			return nil, 0, ErrEndOfStream
		}
		val := make([]byte, strLen)
		copy(val, b[off:off+int(strLen)])
		off += int(strLen)
		obj.Field = Field{Tag: FieldString, String: val}
	default:
		return nil, 0, ErrUnsupportedType
	}

	return obj, off, nil
}
