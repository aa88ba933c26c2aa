package session

import (
	"strings"
	"testing"

	"github.com/mavkit/mavctl/internal/mavlink/frame"
	"github.com/mavkit/mavctl/internal/mavlink/registry"
	"github.com/mavkit/mavctl/internal/mavlink/signing"
)

type echoMsg struct {
	id      uint32
	payload []byte
}

func (m echoMsg) MsgID() uint32 { return m.id }

func echoTable(t *testing.T) *registry.Table {
	t.Helper()
	tbl := registry.NewTable()
	tbl.MustRegister(registry.MessageInfo{
		MsgID: 5, Name: "ECHO", CRCExtra: 0x33, MinLen: 4, MaxLen: 4,
		Decode: func(p []byte) (registry.Message, error) {
			return echoMsg{id: 5, payload: append([]byte(nil), p...)}, nil
		},
		Encode: func(m registry.Message) ([]byte, error) {
			return m.(echoMsg).payload, nil
		},
	})
	return tbl
}

func TestSequenceWrapsAfter256Calls(t *testing.T) {
	s := New(Config{SysID: 1, CompID: 1}, echoTable(t))
	msg := echoMsg{id: 5, payload: []byte{1, 2, 3, 4}}
	for i := 0; i < 257; i++ {
		wire, err := s.Serialize(msg)
		if err != nil {
			t.Fatalf("serialize %d: %v", i, err)
		}
		want := byte(i % 256)
		if got := wire[4]; got != want { // v2 seq offset
			t.Fatalf("call %d: seq got %d want %d", i, got, want)
		}
	}
}

func TestExplicitSequenceLeavesCounterAlone(t *testing.T) {
	s := New(Config{}, echoTable(t))
	msg := echoMsg{id: 5, payload: []byte{1, 2, 3, 4}}

	wire, err := s.SerializeSeq(msg, 200)
	if err != nil {
		t.Fatalf("serialize seq: %v", err)
	}
	if wire[4] != 200 {
		t.Fatalf("explicit seq: got %d want 200", wire[4])
	}
	wire, err = s.Serialize(msg)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if wire[4] != 0 {
		t.Fatalf("counter consumed by explicit call: got %d want 0", wire[4])
	}
}

func TestSessionsDoNotShareCounters(t *testing.T) {
	tbl := echoTable(t)
	a := New(Config{}, tbl)
	b := New(Config{}, tbl)
	msg := echoMsg{id: 5, payload: []byte{1, 2, 3, 4}}

	for i := 0; i < 3; i++ {
		if _, err := a.Serialize(msg); err != nil {
			t.Fatalf("serialize: %v", err)
		}
	}
	wire, err := b.Serialize(msg)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if wire[4] != 0 {
		t.Fatalf("fresh session seq: got %d want 0", wire[4])
	}
}

func TestSerializeMavlink1(t *testing.T) {
	s := New(Config{SysID: 7, Mavlink1: true}, echoTable(t))
	wire, err := s.Serialize(echoMsg{id: 5, payload: []byte{1, 2, 3, 4}})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if wire[0] != frame.MagicV1 {
		t.Fatalf("magic: got %#x want %#x", wire[0], frame.MagicV1)
	}
	if wire[3] != 7 {
		t.Fatalf("sysid: got %d want 7", wire[3])
	}
}

func TestSerializeUnknownMessage(t *testing.T) {
	s := New(Config{}, echoTable(t))
	_, err := s.Serialize(echoMsg{id: 9, payload: []byte{1}})
	if err == nil || !strings.Contains(err.Error(), "no registry entry") {
		t.Fatalf("expected registry miss error, got %v", err)
	}
}

func TestSignedSessionProducesSignedFrames(t *testing.T) {
	var key signing.Key
	signer := signing.NewSigner(key, 2)
	s := New(Config{Signer: signer}, echoTable(t))

	wire, err := s.Serialize(echoMsg{id: 5, payload: []byte{1, 2, 3, 4}})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if wire[2]&frame.IncompatFlagSigned == 0 {
		t.Fatalf("session with signer emitted unsigned frame")
	}
	if len(wire) != frame.HeaderLenV2+4+frame.ChecksumLen+frame.SignatureLen {
		t.Fatalf("signed frame length: %d", len(wire))
	}
}
