package signing

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testKey() Key {
	var k Key
	for i := range k {
		k[i] = byte(i * 3)
	}
	return k
}

func TestKeyFromHex(t *testing.T) {
	k, err := KeyFromHex(strings.Repeat("ab", KeyLen))
	if err != nil {
		t.Fatalf("key from hex: %v", err)
	}
	if k[0] != 0xAB || k[KeyLen-1] != 0xAB {
		t.Fatalf("key bytes wrong: %x", k)
	}
	if _, err := KeyFromHex("abcd"); !errors.Is(err, ErrBadKeyLength) {
		t.Fatalf("expected ErrBadKeyLength, got %v", err)
	}
	if _, err := KeyFromHex("zz"); err == nil {
		t.Fatalf("expected hex decode error")
	}
}

func TestTimestampEpoch(t *testing.T) {
	epoch := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got := Timestamp(epoch); got != 0 {
		t.Fatalf("epoch timestamp: got %d want 0", got)
	}
	if got := Timestamp(epoch.Add(time.Second)); got != 100 {
		t.Fatalf("one second: got %d want 100 centiseconds", got)
	}
	if got := Timestamp(epoch.Add(-time.Hour)); got != 0 {
		t.Fatalf("pre-epoch timestamp: got %d want 0", got)
	}
}

func TestUint48RoundTrip(t *testing.T) {
	var b [6]byte
	const v = uint64(0x0000_A1B2_C3D4_E5F6) & TimestampMax
	PutUint48(b[:], v)
	if got := Uint48(b[:]); got != v {
		t.Fatalf("uint48 round trip: got %x want %x", got, v)
	}
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	key := testKey()
	frame := []byte{0xFD, 0x01, 0x01, 0x00, 0x05, 0x01, 0x01, 0x00, 0x00, 0x00, 0x42, 0x12, 0x34}
	sig := Compute(key, frame, 7, 1000)

	v := NewVerifier(Config{Key: key, LinkID: 7})
	if err := v.Verify(frame, 7, 1000, sig); err != nil {
		t.Fatalf("verify valid: %v", err)
	}
}

func TestVerifyRejectsTamperedFrame(t *testing.T) {
	key := testKey()
	frame := []byte{0xFD, 0x01, 0x01, 0x00, 0x05, 0x01, 0x01, 0x00, 0x00, 0x00, 0x42, 0x12, 0x34}
	sig := Compute(key, frame, 7, 1000)

	tampered := append([]byte(nil), frame...)
	tampered[10] ^= 0x01

	v := NewVerifier(Config{Key: key})
	if err := v.Verify(tampered, 7, 1000, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	frame := []byte{1, 2, 3}
	sig := Compute(testKey(), frame, 0, 50)
	var other Key
	v := NewVerifier(Config{Key: other})
	if err := v.Verify(frame, 0, 50, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyReplayLedgerPerLink(t *testing.T) {
	key := testKey()
	frame := []byte{9, 9, 9}
	v := NewVerifier(Config{Key: key})

	if err := v.Verify(frame, 1, 500, Compute(key, frame, 1, 500)); err != nil {
		t.Fatalf("first timestamp: %v", err)
	}
	// older timestamp on same link is a replay
	if err := v.Verify(frame, 1, 400, Compute(key, frame, 1, 400)); !errors.Is(err, ErrTimestampReplay) {
		t.Fatalf("expected ErrTimestampReplay, got %v", err)
	}
	// equal timestamp is still acceptable (>= last accepted)
	if err := v.Verify(frame, 1, 500, Compute(key, frame, 1, 500)); err != nil {
		t.Fatalf("equal timestamp: %v", err)
	}
	// other link ids keep independent ledgers
	if err := v.Verify(frame, 2, 400, Compute(key, frame, 2, 400)); err != nil {
		t.Fatalf("independent link ledger: %v", err)
	}
}

func TestVerifyAllowOldTimestamps(t *testing.T) {
	key := testKey()
	frame := []byte{9, 9, 9}
	v := NewVerifier(Config{Key: key, AllowOldTimestamps: true})
	if err := v.Verify(frame, 1, 500, Compute(key, frame, 1, 500)); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := v.Verify(frame, 1, 100, Compute(key, frame, 1, 100)); err != nil {
		t.Fatalf("old timestamp should pass under policy: %v", err)
	}
}

func TestRejectedSignatureDoesNotAdvanceLedger(t *testing.T) {
	key := testKey()
	frame := []byte{1, 2, 3}
	v := NewVerifier(Config{Key: key})

	var bogus [SigLen]byte
	if err := v.Verify(frame, 1, 900, bogus); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
	// 800 < 900, but the forged frame must not have advanced the ledger
	if err := v.Verify(frame, 1, 800, Compute(key, frame, 1, 800)); err != nil {
		t.Fatalf("ledger advanced by rejected frame: %v", err)
	}
}

func TestSignerMonotonicTimestamps(t *testing.T) {
	s := NewSigner(testKey(), 4)
	fixed := time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed } // frozen clock

	_, ts1, _ := s.Next([]byte{1})
	_, ts2, _ := s.Next([]byte{1})
	_, ts3, _ := s.Next([]byte{1})
	if !(ts1 < ts2 && ts2 < ts3) {
		t.Fatalf("timestamps not strictly increasing: %d %d %d", ts1, ts2, ts3)
	}
}

func TestSignerNextMatchesCompute(t *testing.T) {
	key := testKey()
	s := NewSigner(key, 9)
	frame := []byte{0xAA, 0xBB}
	linkID, ts, sig := s.Next(frame)
	if linkID != 9 {
		t.Fatalf("link id: got %d want 9", linkID)
	}
	if want := Compute(key, frame, 9, ts); sig != want {
		t.Fatalf("signature mismatch: got %x want %x", sig, want)
	}
}
