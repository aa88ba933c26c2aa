// Package stream turns an arbitrary, chunked byte stream into
// validated packets. The framer buffers partial frames across Feed
// calls, interleaves v1 and v2 traffic, and degrades every receive
// anomaly to a dropped frame plus a counter; it never returns an error
// for malformed input.
package stream

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/mavkit/mavctl/internal/mavlink/frame"
	"github.com/mavkit/mavctl/internal/mavlink/registry"
	"github.com/mavkit/mavctl/internal/mavlink/signing"
	"github.com/mavkit/mavctl/internal/mavlink/x25"
)

// ResyncPolicy selects how far the framer advances after dropping a
// structurally implicated frame.
type ResyncPolicy int

const (
	// ResyncScan advances one byte past the false sync marker and
	// rescans. Lowest recovery latency; may revalidate bytes inside
	// the bad frame.
	ResyncScan ResyncPolicy = iota
	// ResyncSkipFrame skips the whole claimed frame length. Cheaper on
	// dense corruption; risks skipping a real frame that started
	// inside the bad one.
	ResyncSkipFrame
)

// DefaultMaxBuffer caps the internal reassembly buffer.
const DefaultMaxBuffer = 4096

// Config wires one framer instance. Registry is required; a nil
// Verifier disables signature enforcement entirely.
type Config struct {
	Registry  registry.Registry
	Verifier  *signing.Verifier
	Resync    ResyncPolicy
	MaxBuffer int
}

// Stats are the monotonic receive counters for one framer. They are
// only reset by an explicit ResetStats call.
type Stats struct {
	BytesReceived     uint64
	PacketsReceived   uint64
	BadCRC            uint64
	BadLength         uint64
	UnknownMessage    uint64
	SignatureFailures uint64
	BufferOverflows   uint64
}

// Framer is the per-connection parse state machine. Not safe for
// concurrent use; each connection owns exactly one instance.
type Framer struct {
	cfg   Config
	buf   []byte
	stats Stats
	now   func() time.Time
}

func NewFramer(cfg Config) *Framer {
	if cfg.MaxBuffer <= 0 {
		cfg.MaxBuffer = DefaultMaxBuffer
	}
	return &Framer{cfg: cfg, now: time.Now}
}

// Feed appends chunk to the internal buffer and extracts every
// complete, valid frame. It may return zero, one, or many packets;
// remainder bytes persist for the next call.
func (f *Framer) Feed(chunk []byte) []*frame.Packet {
	f.stats.BytesReceived += uint64(len(chunk))
	f.buf = append(f.buf, chunk...)

	var packets []*frame.Packet
	pos := 0
scan:
	for {
		i := nextMagic(f.buf, pos)
		if i < 0 {
			pos = len(f.buf)
			break
		}
		pkt, adv, ok := f.extract(f.buf[i:])
		switch {
		case adv == 0:
			// Incomplete frame; wait for more bytes.
			pos = i
			break scan
		case ok:
			packets = append(packets, pkt)
			pos = i + adv
		default:
			pos = i + adv
		}
	}

	// Compact consumed bytes to the front.
	if pos > 0 {
		f.buf = append(f.buf[:0], f.buf[pos:]...)
	}
	if len(f.buf) > f.cfg.MaxBuffer {
		f.stats.BufferOverflows++
		f.buf = f.buf[:0]
	}
	return packets
}

// extract attempts to pull one frame off the front of b, which starts
// at a magic byte. It returns (packet, bytesToAdvance, accepted);
// adv == 0 means the frame is still incomplete.
func (f *Framer) extract(b []byte) (*frame.Packet, int, bool) {
	headerLen := frame.HeaderLenV1
	if b[0] == frame.MagicV2 {
		headerLen = frame.HeaderLenV2
	}
	if len(b) < headerLen {
		return nil, 0, false
	}

	payloadLen := int(b[1])
	var msgID uint32
	var incompat, compat, seq, sysID, compID byte
	signed := false
	if b[0] == frame.MagicV2 {
		incompat = b[2]
		compat = b[3]
		seq, sysID, compID = b[4], b[5], b[6]
		signed = incompat&frame.IncompatFlagSigned != 0
		msgID = uint32(b[7]) | uint32(b[8])<<8 | uint32(b[9])<<16
	} else {
		seq, sysID, compID = b[2], b[3], b[4]
		msgID = uint32(b[5])
	}

	info, known := f.cfg.Registry.Lookup(msgID)
	if !known {
		f.stats.UnknownMessage++
		return nil, f.resyncAdvance(b, headerLen, payloadLen, signed), false
	}

	if b[0] == frame.MagicV2 {
		// Trimmed length: anything up to the declared max is padded
		// back before decode.
		if payloadLen > int(info.MaxLen) {
			f.stats.BadLength++
			return nil, f.resyncAdvance(b, headerLen, payloadLen, signed), false
		}
	} else if payloadLen != int(info.MinLen) {
		// v1 carries the exact fixed pre-extension size.
		f.stats.BadLength++
		return nil, f.resyncAdvance(b, headerLen, payloadLen, signed), false
	}

	total := headerLen + payloadLen + frame.ChecksumLen
	if signed {
		total += frame.SignatureLen
	}
	if len(b) < total {
		return nil, 0, false
	}

	crcEnd := headerLen + payloadLen
	wireCRC := binary.LittleEndian.Uint16(b[crcEnd : crcEnd+frame.ChecksumLen])
	if x25.Checksum(b[1:crcEnd], info.CRCExtra) != wireCRC {
		f.stats.BadCRC++
		return nil, f.resyncAdvance(b, headerLen, payloadLen, signed), false
	}

	var sig *frame.Signature
	if signed {
		block := b[crcEnd+frame.ChecksumLen : total]
		sig = &frame.Signature{
			LinkID:    block[0],
			Timestamp: signing.Uint48(block[1:7]),
		}
		copy(sig.Signature[:], block[7:])
	}

	if f.cfg.Verifier != nil {
		if sig != nil {
			if err := f.cfg.Verifier.Verify(b[:crcEnd+frame.ChecksumLen], sig.LinkID, sig.Timestamp, sig.Signature); err != nil {
				f.stats.SignatureFailures++
				return nil, f.resyncAdvance(b, headerLen, payloadLen, signed), false
			}
		} else if !f.cfg.Verifier.AcceptsUnsigned() {
			f.stats.SignatureFailures++
			return nil, f.resyncAdvance(b, headerLen, payloadLen, signed), false
		}
	}

	payload := make([]byte, info.MaxLen)
	copy(payload, b[headerLen:crcEnd])

	pkt := &frame.Packet{
		Magic:         b[0],
		PayloadLen:    byte(payloadLen),
		IncompatFlags: incompat,
		CompatFlags:   compat,
		Seq:           seq,
		SysID:         sysID,
		CompID:        compID,
		MsgID:         msgID,
		Payload:       payload,
		Checksum:      wireCRC,
		Signature:     sig,
		RxTime:        f.now(),
	}
	f.stats.PacketsReceived++
	return pkt, total, true
}

// resyncAdvance decides how many bytes a dropped frame consumes. The
// framer never blindly trusts the failed frame's claimed extent unless
// the policy asks for it.
func (f *Framer) resyncAdvance(b []byte, headerLen, payloadLen int, signed bool) int {
	if f.cfg.Resync == ResyncSkipFrame {
		total := headerLen + payloadLen + frame.ChecksumLen
		if signed {
			total += frame.SignatureLen
		}
		if total > len(b) {
			total = len(b)
		}
		return total
	}
	return 1
}

// Stats returns a snapshot of the receive counters.
func (f *Framer) Stats() Stats {
	return f.stats
}

// ResetStats zeroes the counters. Only the owning caller may do this.
func (f *Framer) ResetStats() {
	f.stats = Stats{}
}

// Buffered reports how many bytes await a frame boundary.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

func nextMagic(b []byte, from int) int {
	if from >= len(b) {
		return -1
	}
	v1 := bytes.IndexByte(b[from:], frame.MagicV1)
	v2 := bytes.IndexByte(b[from:], frame.MagicV2)
	switch {
	case v1 < 0 && v2 < 0:
		return -1
	case v1 < 0:
		return from + v2
	case v2 < 0:
		return from + v1
	case v1 < v2:
		return from + v1
	default:
		return from + v2
	}
}
