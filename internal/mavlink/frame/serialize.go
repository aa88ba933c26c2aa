package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/mavkit/mavctl/internal/mavlink/registry"
	"github.com/mavkit/mavctl/internal/mavlink/signing"
	"github.com/mavkit/mavctl/internal/mavlink/x25"
)

// Options is the per-call serialize configuration. The zero value
// targets an unsigned v2 frame from sysid/compid 0.
type Options struct {
	SysID  byte
	CompID byte
	Seq    byte
	// Mavlink1 selects the v1 framing in SerializeMessage.
	Mavlink1 bool
	// Sign appends a signature block (v2 only). Requires Signer.
	Sign   bool
	Signer *signing.Signer
}

// SerializeV1 builds a v1 wire frame. The payload is transmitted
// untrimmed; msgid must fit one byte.
func SerializeV1(msgID uint32, payload []byte, crcExtra byte, opts Options) ([]byte, error) {
	if msgID > MaxMsgIDV1 {
		return nil, fmt.Errorf("%w: msgid=%d max=%d (v1)", ErrMsgIDTooLarge, msgID, MaxMsgIDV1)
	}
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: len=%d", ErrPayloadTooLarge, len(payload))
	}
	if opts.Sign {
		return nil, ErrSigningV1
	}

	buf := make([]byte, HeaderLenV1+len(payload)+ChecksumLen)
	buf[0] = MagicV1
	buf[1] = byte(len(payload))
	buf[2] = opts.Seq
	buf[3] = opts.SysID
	buf[4] = opts.CompID
	buf[5] = byte(msgID)
	copy(buf[HeaderLenV1:], payload)

	// CRC covers everything after STX, plus crcExtra.
	crc := x25.Checksum(buf[1:HeaderLenV1+len(payload)], crcExtra)
	binary.LittleEndian.PutUint16(buf[HeaderLenV1+len(payload):], crc)
	return buf, nil
}

// SerializeV2 builds a v2 wire frame with trailing-zero payload
// trimming and an optional signature block.
func SerializeV2(msgID uint32, payload []byte, crcExtra byte, opts Options) ([]byte, error) {
	if msgID > MaxMsgIDV2 {
		return nil, fmt.Errorf("%w: msgid=%d max=%d (v2)", ErrMsgIDTooLarge, msgID, MaxMsgIDV2)
	}
	if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: len=%d", ErrPayloadTooLarge, len(payload))
	}
	if opts.Sign && opts.Signer == nil {
		return nil, ErrSigningKeyRequired
	}

	trimmed := TrimPayload(payload)

	var incompat byte
	if opts.Sign {
		incompat |= IncompatFlagSigned
	}

	n := HeaderLenV2 + len(trimmed) + ChecksumLen
	buf := make([]byte, n, n+SignatureLen)
	buf[0] = MagicV2
	buf[1] = byte(len(trimmed))
	buf[2] = incompat
	buf[3] = 0 // compat flags
	buf[4] = opts.Seq
	buf[5] = opts.SysID
	buf[6] = opts.CompID
	buf[7] = byte(msgID)
	buf[8] = byte(msgID >> 8)
	buf[9] = byte(msgID >> 16)
	copy(buf[HeaderLenV2:], trimmed)

	crc := x25.Checksum(buf[1:HeaderLenV2+len(trimmed)], crcExtra)
	binary.LittleEndian.PutUint16(buf[HeaderLenV2+len(trimmed):], crc)

	if opts.Sign {
		linkID, ts, sig := opts.Signer.Next(buf[:n])
		block := make([]byte, SignatureLen)
		block[0] = linkID
		signing.PutUint48(block[1:7], ts)
		copy(block[7:], sig[:])
		buf = append(buf, block...)
	}
	return buf, nil
}

// SerializeMessage encodes msg through its registry metadata and
// frames it per opts (v2 unless Mavlink1 is set).
func SerializeMessage(info registry.MessageInfo, msg registry.Message, opts Options) ([]byte, error) {
	payload, err := info.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("frame: encode msgid=%d: %w", info.MsgID, err)
	}
	if opts.Mavlink1 {
		return SerializeV1(info.MsgID, payload, info.CRCExtra, opts)
	}
	return SerializeV2(info.MsgID, payload, info.CRCExtra, opts)
}
