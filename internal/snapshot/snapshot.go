// Package snapshot implements whole-database dump and restore: a
// concatenation of length-prefixed, per-object LZ4-compressed frames.
package snapshot

import (
	"encoding/binary"
	"errors"
	"io"
	"syscall"

	"github.com/pierrec/lz4/v4"

	"github.com/raptodb/raptodb/internal/objcodec"
	"github.com/raptodb/raptodb/internal/store"
)

// ErrOutOfDisk is returned by Save when a write to the target fails
// because the underlying device is out of space.
var ErrOutOfDisk = errors.New("out of disk")

// lz4WorstCaseFactor guards the admission check in Load: a compressed
// frame's worst-case decompressed size is bounded by a factor of 255
// per the LZ4 block format, so anything whose worst case exceeds the
// store's remaining capacity is rejected up front.
const lz4WorstCaseFactor = 255

// Save truncates w's backing file (the caller is responsible for
// opening it truncated/at offset 0) and writes every live object from
// cold end to hot end as (u64 compressed_len, compressed_payload).
func Save(w io.Writer, s *store.Store) error {
	objs := s.All()
	for _, obj := range objs {
		raw, err := objcodec.Serialize(obj)
		if err != nil {
			return err
		}

		bound := lz4.CompressBlockBound(len(raw))
		compressed := make([]byte, bound)
		var c lz4.Compressor
		n, err := c.CompressBlock(raw, compressed)
		if err != nil {
			return mapWriteErr(err)
		}
		compressed = compressed[:n]

		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(compressed)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return mapWriteErr(err)
		}
		if _, err := w.Write(compressed); err != nil {
			return mapWriteErr(err)
		}
	}
	return nil
}

func mapWriteErr(err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, io.ErrShortWrite) {
		return ErrOutOfDisk
	}
	return err
}

// Load reads frames from r until EOF or a zero-length frame, debiting
// each decoded object's size from s's capacity and appending it.
// Returns the number of objects loaded.
//
// Any decode error after the object has already been admitted against
// capacity is fatal (the store may be left partially loaded); any
// earlier decode error stops the load quietly, matching the legacy
// tolerance the format specifies.
func Load(r io.Reader, s *store.Store) (int, error) {
	count := 0
	var lenBuf [8]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				return count, nil
			}
			return count, nil
		}
		frameLen := binary.LittleEndian.Uint64(lenBuf[:])
		if frameLen == 0 {
			return count, nil
		}

		if frameLen*lz4WorstCaseFactor > s.CapRemaining() {
			return count, nil
		}

		compressed := make([]byte, frameLen)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return count, nil
		}

		raw := make([]byte, frameLen*lz4WorstCaseFactor)
		n, err := lz4.UncompressBlock(compressed, raw)
		if err != nil {
			return count, nil
		}
		raw = raw[:n]

		obj, _, err := objcodec.Deserialize(raw)
		if err != nil {
			return count, err
		}

		if err := s.Append(obj); err != nil {
			return count, err
		}
		count++
	}
}
