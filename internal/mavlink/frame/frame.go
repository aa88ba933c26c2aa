// Package frame owns the MAVLink wire contract: frame constants, the
// validated Packet shape emitted by the parser, and the v1/v2
// serializers.
package frame

import (
	"errors"
	"time"

	"github.com/mavkit/mavctl/internal/mavlink/signing"
)

const (
	// MagicV1 and MagicV2 are the frame sync (STX) bytes.
	MagicV1 byte = 0xFE
	MagicV2 byte = 0xFD

	// HeaderLenV1 and HeaderLenV2 include the STX byte.
	HeaderLenV1 = 6
	HeaderLenV2 = 10

	ChecksumLen = 2
	// SignatureLen is the v2 signature block: link id + 48-bit
	// timestamp + 6 signature bytes.
	SignatureLen = 13

	// IncompatFlagSigned marks a signed v2 frame.
	IncompatFlagSigned byte = 0x01

	MaxPayloadLen = 255
	MaxMsgIDV1    = 0xFF
	MaxMsgIDV2    = 0xFFFFFF

	// MaxFrameLen is the largest possible wire frame (signed v2 with a
	// full payload).
	MaxFrameLen = HeaderLenV2 + MaxPayloadLen + ChecksumLen + SignatureLen
)

var (
	ErrMsgIDTooLarge      = errors.New("frame: message id does not fit protocol version")
	ErrPayloadTooLarge    = errors.New("frame: payload exceeds 255 bytes")
	ErrSigningKeyRequired = errors.New("frame: signing requested without a signer")
	ErrSigningV1          = errors.New("frame: signing requires mavlink2")
)

// Signature is the authentication block of a signed v2 frame.
type Signature struct {
	LinkID    byte
	Timestamp uint64 // 48-bit, centiseconds since the signing epoch
	Signature [signing.SigLen]byte
}

// Packet is one validated frame. The parser constructs a Packet only
// after the CRC (and, when configured, the signature policy) passed;
// consumers treat it as immutable.
//
// Signature is non-nil exactly when the frame was a signed v2 frame:
// the v1 serializer and parser never populate it.
type Packet struct {
	Magic         byte
	PayloadLen    byte
	IncompatFlags byte
	CompatFlags   byte
	Seq           byte
	SysID         byte
	CompID        byte
	MsgID         uint32
	// Payload is zero-padded back to the registry's declared MaxLen,
	// undoing v2 trailing-zero trimming.
	Payload   []byte
	Checksum  uint16
	Signature *Signature
	RxTime    time.Time
}

// IsMavlink2 reports whether the packet arrived as a v2 frame.
func (p *Packet) IsMavlink2() bool {
	return p.Magic == MagicV2
}

// IsSigned reports whether the frame carried a signature block.
func (p *Packet) IsSigned() bool {
	return p.Signature != nil
}

// TrimPayload strips trailing zero bytes down to a minimum of one
// byte. Legal on the v2 serialize path only because the receiver
// zero-pads back to the declared length before decoding, so trailing
// zeros carry no information.
func TrimPayload(payload []byte) []byte {
	n := len(payload)
	for n > 1 && payload[n-1] == 0 {
		n--
	}
	return payload[:n]
}

// PadPayload returns payload zero-extended to length n. The input is
// returned unchanged when already long enough.
func PadPayload(payload []byte, n byte) []byte {
	if len(payload) >= int(n) {
		return payload
	}
	out := make([]byte, n)
	copy(out, payload)
	return out
}
