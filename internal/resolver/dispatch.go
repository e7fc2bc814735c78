package resolver

import (
	"github.com/raptodb/raptodb/internal/objcodec"
	"github.com/raptodb/raptodb/internal/raptoerr"
	"github.com/raptodb/raptodb/internal/raptometrics"
	"github.com/raptodb/raptodb/internal/snapshot"
	"github.com/raptodb/raptodb/internal/store"
)

// SaveFunc performs one synchronous whole-database save.
type SaveFunc func() error

// Dispatcher resolves Queries against a single Store. It is only
// ever driven by the executor goroutine — see the raptoserver
// package — so it holds no lock of its own.
type Dispatcher struct {
	Store      *store.Store
	Metrics    *raptometrics.Metrics
	ModCounter *snapshot.Counter
	Save       SaveFunc

	ServerName string
	Capacity   uint64
}

// Response is a resolved answer: Bytes is the payload to transmit,
// Down signals that the server must stop accepting new queries after
// transmitting (set only by DOWN).
type Response struct {
	Bytes []byte
	Down  bool
}

// handlerFunc resolves one command's args against d.
type handlerFunc func(d *Dispatcher, args []byte) (*Response, error)

var commandTable = map[string]handlerFunc{
	"PING":    handlePing,
	"ISET":    handleSet(objcodec.FieldInteger),
	"DSET":    handleSet(objcodec.FieldDecimal),
	"SSET":    handleSet(objcodec.FieldString),
	"UPDATE":  handleUpdate,
	"RENAME":  handleRename,
	"GET":     handleGet,
	"TYPE":    handleType,
	"CHECK":   handleCheck,
	"COUNT":   handleCount,
	"LIST":    handleList,
	"TOUCH":   handleTouch,
	"HEAD":    handleHead,
	"TAIL":    handleTail,
	"SHEAD":   handleShead,
	"STAIL":   handleStail,
	"SORT":    handleSort,
	"FREQ":    handleFreq,
	"LAST":    handleLast,
	"IDLE":    handleIdle,
	"LEN":     handleLen,
	"SIZE":    handleSize,
	"MEM":     handleMem,
	"DB":      handleDB,
	"DUMP":    handleDump,
	"RESTORE": handleRestore,
	"ERASE":   handleErase,
	"DEL":     handleDel,
	"SAVE":    handleSave,
	"COPY":    handleCopy,
	"DOWN":    handleDown,
}

// Resolve dispatches q against d, incrementing the modification
// counter on every successful resolution so the autosnap worker sees
// it.
func (d *Dispatcher) Resolve(q *Query) (*Response, error) {
	handler, ok := commandTable[q.Command]
	if !ok {
		return nil, raptoerr.ErrCommandNotExist
	}

	before := d.Store.CapRemaining()
	resp, err := handler(d, q.Args)
	if err != nil {
		return nil, err
	}
	d.observeCapacityDelta(before)

	if d.ModCounter != nil {
		d.ModCounter.Inc()
	}
	return resp, nil
}

// observeCapacityDelta feeds the MEM counters from the change in
// cap_remaining a resolved command produced: a shrink is new
// allocation, a growth is a free event. Same-type string updates
// (§4.2's known capacity gap) produce no delta and are invisible here
// too, matching the Store's own accounting.
func (d *Dispatcher) observeCapacityDelta(before uint64) {
	if d.Metrics == nil {
		return
	}
	after := d.Store.CapRemaining()
	d.Metrics.ObserveLive(int64(d.Capacity - after))
	switch {
	case after < before:
		d.Metrics.AllocatedBytes(int64(before - after))
	case after > before:
		d.Metrics.Freed()
	}
}

func ok() (*Response, error) { return &Response{Bytes: []byte("OK")}, nil }

func text(s string) (*Response, error) { return &Response{Bytes: []byte(s)}, nil }

func bytesResp(b []byte) (*Response, error) { return &Response{Bytes: b}, nil }
