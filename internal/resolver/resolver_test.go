package resolver

import (
	"testing"

	"github.com/raptodb/raptodb/internal/raptoerr"
	"github.com/raptodb/raptodb/internal/store"
)

func newDispatcher(cap uint64) *Dispatcher {
	return &Dispatcher{
		Store:      store.New(cap),
		ServerName: "test",
		Capacity:   cap,
	}
}

func run(t *testing.T, d *Dispatcher, frame string) (string, error) {
	t.Helper()
	q, err := ParseQuery(1, []byte(frame))
	if err != nil {
		return "", err
	}
	resp, err := d.Resolve(q)
	if err != nil {
		return "", err
	}
	return string(resp.Bytes), nil
}

func TestScenarioSSETGetTypeLen(t *testing.T) {
	d := newDispatcher(1 << 20)

	if out, err := run(t, d, "SSET name Alice"); err != nil || out != "OK" {
		t.Fatalf("SSET: %q, %v", out, err)
	}
	if out, err := run(t, d, "GET name"); err != nil || out != `"Alice"` {
		t.Fatalf("GET: %q, %v", out, err)
	}
	if out, err := run(t, d, "TYPE name"); err != nil || out != "string" {
		t.Fatalf("TYPE: %q, %v", out, err)
	}
	if out, err := run(t, d, "LEN name"); err != nil || out != "5" {
		t.Fatalf("LEN: %q, %v", out, err)
	}
}

func TestScenarioIntegerUpdate(t *testing.T) {
	d := newDispatcher(1 << 20)
	run(t, d, "ISET x 10")
	if out, err := run(t, d, "UPDATE x 3"); err != nil || out != "OK" {
		t.Fatalf("UPDATE: %q, %v", out, err)
	}
	if out, err := run(t, d, "GET x"); err != nil || out != "13" {
		t.Fatalf("GET: %q, %v", out, err)
	}
	if _, err := run(t, d, "UPDATE x 0.5"); !raptoerr.Is(err, raptoerr.ErrMismatchType.Code) {
		t.Fatalf("UPDATE mismatched type: got %v", err)
	}
}

func TestScenarioDecimalUpdate(t *testing.T) {
	d := newDispatcher(1 << 20)
	run(t, d, "DSET y 1.0")
	if out, err := run(t, d, "GET y"); err != nil || out != "1.0" {
		t.Fatalf("GET: %q, %v", out, err)
	}
	run(t, d, "UPDATE y 0.5")
	if out, err := run(t, d, "GET y"); err != nil || out != "1.5" {
		t.Fatalf("GET after update: %q, %v", out, err)
	}
}

func TestScenarioListPromotion(t *testing.T) {
	d := newDispatcher(1 << 20)
	run(t, d, "ISET a 1")
	run(t, d, "ISET b 2")
	run(t, d, "ISET c 3")
	if out, err := run(t, d, "LIST"); err != nil || out != "c b a" {
		t.Fatalf("LIST: %q, %v", out, err)
	}
	run(t, d, "GET a")
	if out, err := run(t, d, "LIST"); err != nil || out != "c a b" {
		t.Fatalf("LIST after promotion: %q, %v", out, err)
	}
}

func TestUnknownCommand(t *testing.T) {
	d := newDispatcher(1 << 20)
	if _, err := run(t, d, "FROBNICATE x"); !raptoerr.Is(err, raptoerr.ErrCommandNotExist.Code) {
		t.Fatalf("got %v, want ErrCommandNotExist", err)
	}
}

func TestEmptyQueryRejected(t *testing.T) {
	if _, err := ParseQuery(1, []byte("   ")); err != raptoerr.ErrEmptyQuery {
		t.Fatalf("got %v, want ErrEmptyQuery", err)
	}
}

func TestListEmptyStoreErrors(t *testing.T) {
	d := newDispatcher(1 << 20)
	if _, err := run(t, d, "LIST"); !raptoerr.Is(err, raptoerr.ErrNoKeysFound.Code) {
		t.Fatalf("got %v, want ErrNoKeysFound", err)
	}
}

func TestDownTriggersSaveAndSignalsShutdown(t *testing.T) {
	d := newDispatcher(1 << 20)
	saved := false
	d.Save = func() error { saved = true; return nil }

	q, err := ParseQuery(1, []byte("DOWN"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := d.Resolve(q)
	if err != nil {
		t.Fatal(err)
	}
	if !saved {
		t.Fatal("DOWN did not trigger a save")
	}
	if !resp.Down {
		t.Fatal("DOWN response did not signal shutdown")
	}
}

func TestDBCommands(t *testing.T) {
	d := newDispatcher(1000)
	run(t, d, "ISET a 1")
	if out, err := run(t, d, "DB NAME"); err != nil || out != "test" {
		t.Fatalf("DB NAME: %q, %v", out, err)
	}
	if out, err := run(t, d, "DB CAP"); err != nil || out != "1000" {
		t.Fatalf("DB CAP: %q, %v", out, err)
	}
	if _, err := run(t, d, "DB SIZE"); err != nil {
		t.Fatalf("DB SIZE: %v", err)
	}
}
