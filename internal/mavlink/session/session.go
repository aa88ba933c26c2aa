// Package session owns per-connection outbound state: the wrapping
// sequence counter, the sender identity, and the optional signer.
// Nothing here is process-global; two links never share a counter.
package session

import (
	"fmt"
	"sync"

	"github.com/mavkit/mavctl/internal/mavlink/frame"
	"github.com/mavkit/mavctl/internal/mavlink/registry"
	"github.com/mavkit/mavctl/internal/mavlink/signing"
)

// Config fixes one session's sender identity and framing defaults.
type Config struct {
	SysID    byte
	CompID   byte
	Mavlink1 bool
	Signer   *signing.Signer
}

// Session serializes outgoing messages for one logical connection.
// Each Serialize call without an explicit sequence consumes the next
// counter value, wrapping mod 256.
type Session struct {
	mu  sync.Mutex
	cfg Config
	reg registry.Registry
	seq byte
}

func New(cfg Config, reg registry.Registry) *Session {
	return &Session{cfg: cfg, reg: reg}
}

// NextSeq consumes and returns the next sequence number.
func (s *Session) NextSeq() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.seq
	s.seq++
	return n
}

// Serialize encodes and frames msg with the session defaults.
func (s *Session) Serialize(msg registry.Message) ([]byte, error) {
	return s.serialize(msg, s.nextOptions())
}

// SerializeSeq frames msg with an explicit sequence number, leaving
// the session counter untouched.
func (s *Session) SerializeSeq(msg registry.Message, seq byte) ([]byte, error) {
	opts := s.baseOptions()
	opts.Seq = seq
	return s.serialize(msg, opts)
}

func (s *Session) serialize(msg registry.Message, opts frame.Options) ([]byte, error) {
	info, ok := s.reg.Lookup(msg.MsgID())
	if !ok {
		return nil, fmt.Errorf("session: no registry entry for msgid=%d", msg.MsgID())
	}
	return frame.SerializeMessage(info, msg, opts)
}

func (s *Session) baseOptions() frame.Options {
	return frame.Options{
		SysID:    s.cfg.SysID,
		CompID:   s.cfg.CompID,
		Mavlink1: s.cfg.Mavlink1,
		Sign:     s.cfg.Signer != nil && !s.cfg.Mavlink1,
		Signer:   s.cfg.Signer,
	}
}

func (s *Session) nextOptions() frame.Options {
	opts := s.baseOptions()
	opts.Seq = s.NextSeq()
	return opts
}
