package resolver

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/raptodb/raptodb/internal/objcodec"
	"github.com/raptodb/raptodb/internal/raptoerr"
	"github.com/raptodb/raptodb/internal/store"
)

// splitOnce splits args into (key, rest) on the first space. rest is
// never trimmed: it may be a string value or a binary payload where
// surrounding whitespace-looking bytes are significant.
func splitOnce(args []byte) (key, rest []byte, ok bool) {
	idx := bytes.IndexByte(args, ' ')
	if idx < 0 {
		return args, nil, false
	}
	return args[:idx], args[idx+1:], true
}

func handlePing(d *Dispatcher, args []byte) (*Response, error) {
	return text("pong")
}

func handleSet(tag objcodec.FieldTag) handlerFunc {
	return func(d *Dispatcher, args []byte) (*Response, error) {
		key, value, hasValue := splitOnce(args)
		if len(key) == 0 || !hasValue {
			return nil, raptoerr.ErrMissingTokens
		}

		var field objcodec.Field
		switch tag {
		case objcodec.FieldInteger:
			n, err := strconv.ParseInt(string(value), 10, 64)
			if err != nil {
				return nil, raptoerr.ErrMismatchType
			}
			field = objcodec.Field{Tag: objcodec.FieldInteger, Integer: n}
		case objcodec.FieldDecimal:
			f, err := strconv.ParseFloat(string(value), 64)
			if err != nil {
				return nil, raptoerr.ErrMismatchType
			}
			field = objcodec.Field{Tag: objcodec.FieldDecimal, Decimal: f}
		case objcodec.FieldString:
			field = objcodec.Field{Tag: objcodec.FieldString, String: append([]byte(nil), value...)}
		}

		if len(key) > objcodec.MaxKeyLen {
			return nil, raptoerr.ErrTypeOverflow
		}

		if _, err := d.Store.Put(key, field); err != nil {
			return nil, mapStoreErr(err)
		}
		return ok()
	}
}

func handleUpdate(d *Dispatcher, args []byte) (*Response, error) {
	key, numStr, hasValue := splitOnce(args)
	if len(key) == 0 || !hasValue {
		return nil, raptoerr.ErrMissingTokens
	}

	if n, err := strconv.ParseInt(string(numStr), 10, 64); err == nil {
		if _, err := d.Store.Update(key, n, 0, true); err != nil {
			return nil, mapStoreErr(err)
		}
		return ok()
	}
	if f, err := strconv.ParseFloat(string(numStr), 64); err == nil {
		if _, err := d.Store.Update(key, 0, f, false); err != nil {
			return nil, mapStoreErr(err)
		}
		return ok()
	}
	return nil, raptoerr.ErrMismatchType
}

func handleRename(d *Dispatcher, args []byte) (*Response, error) {
	oldKey, newKey, hasValue := splitOnce(args)
	if len(oldKey) == 0 || !hasValue || len(newKey) == 0 {
		return nil, raptoerr.ErrMissingTokens
	}
	if err := d.Store.Rename(oldKey, newKey); err != nil {
		return nil, mapStoreErr(err)
	}
	return ok()
}

func formatGet(obj *objcodec.Object) (*Response, error) {
	switch obj.Field.Tag {
	case objcodec.FieldInteger:
		return text(strconv.FormatInt(obj.Field.Integer, 10))
	case objcodec.FieldDecimal:
		return text(formatDecimal(obj.Field.Decimal))
	default:
		return text(fmt.Sprintf("%q", string(obj.Field.String)))
	}
}

// formatDecimal renders a decimal value: integral values are forced
// to show a single fractional digit (1 -> "1.0") so GET never returns
// something indistinguishable from an integer; non-integral values
// use their shortest exact representation.
func formatDecimal(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func handleGet(d *Dispatcher, args []byte) (*Response, error) {
	obj := d.Store.Get(args)
	if obj == nil {
		return nil, raptoerr.ErrKeyNotFound
	}
	return formatGet(obj)
}

func handleType(d *Dispatcher, args []byte) (*Response, error) {
	obj := d.Store.Get(args)
	if obj == nil {
		return nil, raptoerr.ErrKeyNotFound
	}
	return text(obj.Field.TypeName())
}

func handleCheck(d *Dispatcher, args []byte) (*Response, error) {
	if d.Store.Peek(args) == nil {
		return text("0")
	}
	return text("1")
}

func handleCount(d *Dispatcher, args []byte) (*Response, error) {
	return text(strconv.Itoa(d.Store.Len()))
}

func handleList(d *Dispatcher, args []byte) (*Response, error) {
	keys := d.Store.ListKeys()
	if len(keys) == 0 {
		return nil, raptoerr.ErrNoKeysFound
	}
	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.Write(k)
	}
	return bytesResp(buf.Bytes())
}

func handleTouch(d *Dispatcher, args []byte) (*Response, error) {
	if d.Store.Search(args) < 0 {
		return nil, raptoerr.ErrKeyNotFound
	}
	return ok()
}

func handleHead(d *Dispatcher, args []byte) (*Response, error) {
	if err := d.Store.SwapWithHead(args); err != nil {
		return nil, mapStoreErr(err)
	}
	return ok()
}

func handleTail(d *Dispatcher, args []byte) (*Response, error) {
	if err := d.Store.SwapWithTail(args); err != nil {
		return nil, mapStoreErr(err)
	}
	return ok()
}

func handleShead(d *Dispatcher, args []byte) (*Response, error) {
	if err := d.Store.MoveToHead(args); err != nil {
		return nil, mapStoreErr(err)
	}
	return ok()
}

func handleStail(d *Dispatcher, args []byte) (*Response, error) {
	if err := d.Store.MoveToTail(args); err != nil {
		return nil, mapStoreErr(err)
	}
	return ok()
}

func handleSort(d *Dispatcher, args []byte) (*Response, error) {
	d.Store.Prefetch()
	return ok()
}

func handleFreq(d *Dispatcher, args []byte) (*Response, error) {
	key, nStr, hasN := splitOnce(args)
	obj := d.Store.Peek(key)
	if obj == nil {
		return nil, raptoerr.ErrKeyNotFound
	}
	if hasN {
		n, err := strconv.ParseInt(string(nStr), 10, 64)
		if err != nil {
			return nil, raptoerr.ErrMismatchType
		}
		obj.Metadata.AccessTimes = n
	}
	return text(strconv.FormatInt(obj.Metadata.AccessTimes, 10))
}

func handleLast(d *Dispatcher, args []byte) (*Response, error) {
	key, nStr, hasN := splitOnce(args)
	obj := d.Store.Peek(key)
	if obj == nil {
		return nil, raptoerr.ErrKeyNotFound
	}
	if hasN {
		n, err := strconv.ParseInt(string(nStr), 10, 64)
		if err != nil {
			return nil, raptoerr.ErrMismatchType
		}
		obj.Metadata.LastAccess = n
	}
	return text(strconv.FormatInt(obj.Metadata.LastAccess, 10))
}

func handleIdle(d *Dispatcher, args []byte) (*Response, error) {
	obj := d.Store.Peek(args)
	if obj == nil {
		return nil, raptoerr.ErrKeyNotFound
	}
	now := objcodec.NowMicros()
	if obj.Metadata.LastAccess > now {
		return nil, raptoerr.ErrInvalidMetadata
	}
	return text(strconv.FormatInt(now-obj.Metadata.LastAccess, 10))
}

func handleLen(d *Dispatcher, args []byte) (*Response, error) {
	obj := d.Store.Peek(args)
	if obj == nil {
		return nil, raptoerr.ErrKeyNotFound
	}
	if obj.Field.Tag == objcodec.FieldString {
		return text(strconv.Itoa(len(obj.Field.String)))
	}
	return text("8")
}

func handleSize(d *Dispatcher, args []byte) (*Response, error) {
	obj := d.Store.Peek(args)
	if obj == nil {
		return nil, raptoerr.ErrKeyNotFound
	}
	payload := 8
	if obj.Field.Tag == objcodec.FieldString {
		payload = len(obj.Field.String)
	}
	return text(strconv.Itoa(56 + len(obj.Key) + payload))
}

func handleMem(d *Dispatcher, args []byte) (*Response, error) {
	if d.Metrics == nil {
		return nil, raptoerr.ErrUnknownArgument
	}
	switch string(args) {
	case "LIVE":
		return text(strconv.FormatInt(d.Metrics.Live(), 10))
	case "PEAK":
		return text(strconv.FormatInt(d.Metrics.Peak(), 10))
	case "TOTAL":
		return text(strconv.FormatInt(d.Metrics.Total(), 10))
	case "ALLOC":
		return text(strconv.FormatInt(d.Metrics.Alloc(), 10))
	case "FREE":
		return text(strconv.FormatInt(d.Metrics.Free(), 10))
	case "RESET-PEAK":
		d.Metrics.ResetPeak()
		return text("0")
	case "RESET-TOTAL":
		d.Metrics.ResetTotal()
		return text("0")
	case "RESET-COUNT":
		d.Metrics.ResetCount()
		return text("0")
	default:
		return nil, raptoerr.ErrUnknownArgument
	}
}

func handleDB(d *Dispatcher, args []byte) (*Response, error) {
	switch string(args) {
	case "NAME":
		return text(d.ServerName)
	case "CAP":
		return text(strconv.FormatUint(d.Capacity, 10))
	case "SIZE":
		return text(strconv.FormatUint(d.Capacity-d.Store.CapRemaining(), 10))
	default:
		return nil, raptoerr.ErrUnknownArgument
	}
}

func handleDump(d *Dispatcher, args []byte) (*Response, error) {
	obj := d.Store.Peek(args)
	if obj == nil {
		return nil, raptoerr.ErrKeyNotFound
	}
	raw, err := objcodec.Serialize(obj)
	if err != nil {
		return nil, raptoerr.ErrInvalidObject.Wrap(err)
	}
	return bytesResp(raw)
}

func handleRestore(d *Dispatcher, args []byte) (*Response, error) {
	obj, _, err := objcodec.Deserialize(args)
	if err != nil {
		return nil, raptoerr.ErrInvalidObject.Wrap(err)
	}
	if err := d.Store.Append(obj); err != nil {
		return nil, mapStoreErr(err)
	}
	return ok()
}

func handleErase(d *Dispatcher, args []byte) (*Response, error) {
	d.Store.Erase()
	return ok()
}

func handleDel(d *Dispatcher, args []byte) (*Response, error) {
	if err := d.Store.Delete(args); err != nil {
		return nil, mapStoreErr(err)
	}
	return ok()
}

func handleSave(d *Dispatcher, args []byte) (*Response, error) {
	if d.Save == nil {
		return ok()
	}
	if err := d.Save(); err != nil {
		return nil, raptoerr.ErrSaveFailed.Wrap(err)
	}
	return ok()
}

func handleCopy(d *Dispatcher, args []byte) (*Response, error) {
	src, dst, hasValue := splitOnce(args)
	if len(src) == 0 || !hasValue || len(dst) == 0 {
		return nil, raptoerr.ErrMissingTokens
	}
	obj := d.Store.Peek(src)
	if obj == nil {
		return nil, raptoerr.ErrKeyNotFound
	}
	field := obj.Field
	if field.Tag == objcodec.FieldString {
		field.String = append([]byte(nil), field.String...)
	}
	if _, err := d.Store.Put(dst, field); err != nil {
		return nil, mapStoreErr(err)
	}
	return ok()
}

func handleDown(d *Dispatcher, args []byte) (*Response, error) {
	if d.Save != nil {
		if err := d.Save(); err != nil {
			return nil, raptoerr.ErrSaveFailed.Wrap(err)
		}
	}
	return &Response{Down: true}, nil
}

func mapStoreErr(err error) error {
	switch err {
	case store.ErrExceededSpaceLimit:
		return raptoerr.ErrExceededSpaceLimit.Wrap(err)
	case store.ErrKeyReplacementExist:
		return raptoerr.ErrKeyReplacementExist.Wrap(err)
	case store.ErrKeyNotFound:
		return raptoerr.ErrKeyNotFound.Wrap(err)
	case store.ErrMismatchType:
		return raptoerr.ErrMismatchType.Wrap(err)
	default:
		return raptoerr.ErrInvalidObject.Wrap(err)
	}
}
