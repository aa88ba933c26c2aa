// Package signing implements the optional MAVLink v2 frame
// authentication block: a 48-bit link timestamp plus a 6-byte
// truncated SHA-256 keyed by a 32-byte shared secret and a link id.
package signing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// KeyLen is the secret key size in bytes.
	KeyLen = 32
	// SigLen is the truncated signature size in bytes.
	SigLen = 6
	// TimestampMax is the largest representable 48-bit timestamp.
	TimestampMax = 1<<48 - 1
)

var (
	ErrBadKeyLength     = errors.New("signing: secret key must be 32 bytes")
	ErrBadSignature     = errors.New("signing: signature mismatch")
	ErrTimestampReplay  = errors.New("signing: timestamp older than last accepted for link")
	ErrUnsignedRejected = errors.New("signing: unsigned frame rejected by policy")
)

// epoch is the fixed origin for link timestamps.
var epoch = time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)

// Key is a shared signing secret.
type Key [KeyLen]byte

// KeyFromBytes copies b into a Key. b must be exactly 32 bytes.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeyLen {
		return k, fmt.Errorf("%w: got %d", ErrBadKeyLength, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// KeyFromHex decodes a 64-character hex string into a Key.
func KeyFromHex(s string) (Key, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("signing: decode key hex: %w", err)
	}
	return KeyFromBytes(raw)
}

// Config is the per-link trust policy. Each connection owns its own
// Config; nothing here is shared implicitly across links.
type Config struct {
	Key                Key
	LinkID             byte
	AcceptUnsigned     bool
	AllowOldTimestamps bool
}

// Timestamp converts a wall-clock instant to the 48-bit link timestamp
// (centiseconds since 2015-01-01T00:00:00Z).
func Timestamp(now time.Time) uint64 {
	if now.Before(epoch) {
		return 0
	}
	return uint64(now.Sub(epoch)/(10*time.Millisecond)) & TimestampMax
}

// Compute derives the 6-byte signature for a frame. frameBytes covers
// the wire frame from STX through the CRC inclusive.
func Compute(key Key, frameBytes []byte, linkID byte, timestamp uint64) [SigLen]byte {
	var ts [6]byte
	putUint48(ts[:], timestamp)

	h := sha256.New()
	h.Write(key[:])
	h.Write(frameBytes)
	h.Write([]byte{linkID})
	h.Write(ts[:])

	var sig [SigLen]byte
	copy(sig[:], h.Sum(nil)[:SigLen])
	return sig
}

// Signer produces signature blocks for outgoing frames with a
// per-signer monotonic timestamp.
type Signer struct {
	mu     sync.Mutex
	key    Key
	linkID byte
	last   uint64
	now    func() time.Time
}

func NewSigner(key Key, linkID byte) *Signer {
	return &Signer{key: key, linkID: linkID, now: time.Now}
}

// Next signs frameBytes and returns the link id, the timestamp used,
// and the signature. Timestamps never repeat or go backwards within
// one Signer even if the clock does.
func (s *Signer) Next(frameBytes []byte) (byte, uint64, [SigLen]byte) {
	s.mu.Lock()
	ts := Timestamp(s.now())
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	s.mu.Unlock()
	return s.linkID, ts, Compute(s.key, frameBytes, s.linkID, ts)
}

// Verifier checks incoming signature blocks against a Config. It keeps
// the highest timestamp accepted per link id to reject replays.
type Verifier struct {
	mu   sync.Mutex
	cfg  Config
	seen map[byte]uint64
}

func NewVerifier(cfg Config) *Verifier {
	return &Verifier{cfg: cfg, seen: make(map[byte]uint64)}
}

// AcceptsUnsigned reports whether the policy admits unsigned frames.
func (v *Verifier) AcceptsUnsigned() bool {
	return v.cfg.AcceptUnsigned
}

// Verify checks the signature block received with a frame. frameBytes
// covers STX through CRC. On success the link's replay ledger advances;
// a rejected frame leaves the ledger untouched.
func (v *Verifier) Verify(frameBytes []byte, linkID byte, timestamp uint64, sig [SigLen]byte) error {
	want := Compute(v.cfg.Key, frameBytes, linkID, timestamp)
	// Constant-time compare: a naive byte-equality loop would leak how
	// many leading signature bytes matched.
	if subtle.ConstantTimeCompare(want[:], sig[:]) != 1 {
		return ErrBadSignature
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.cfg.AllowOldTimestamps {
		if last, ok := v.seen[linkID]; ok && timestamp < last {
			return fmt.Errorf("%w: link=%d got=%d last=%d", ErrTimestampReplay, linkID, timestamp, last)
		}
	}
	if timestamp > v.seen[linkID] {
		v.seen[linkID] = timestamp
	}
	return nil
}

func putUint48(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
}

// Uint48 reads a little-endian 48-bit value.
func Uint48(b []byte) uint64 {
	_ = b[5]
	return uint64(binary.LittleEndian.Uint32(b[0:4])) |
		uint64(binary.LittleEndian.Uint16(b[4:6]))<<32
}

// PutUint48 writes a little-endian 48-bit value.
func PutUint48(b []byte, v uint64) {
	_ = b[5]
	putUint48(b, v)
}
