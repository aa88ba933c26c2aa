// Package registry defines the injected message-metadata capability
// the wire engine is generic over. The engine never hard-codes a
// message layout; dialect tables supply crcExtra, length bounds and
// codec functions per message id.
package registry

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicateMessage = errors.New("registry: message id already registered")
	ErrNilCodec         = errors.New("registry: message info requires decode and encode")
	ErrBadLengthBounds  = errors.New("registry: invalid length bounds")
)

// Message is one decoded application-level message.
type Message interface {
	MsgID() uint32
}

// DecodeFunc turns a payload (zero-padded to MaxLen) into a Message.
type DecodeFunc func(payload []byte) (Message, error)

// EncodeFunc turns a Message into its fixed-layout payload bytes.
type EncodeFunc func(msg Message) ([]byte, error)

// MessageInfo is the read-only metadata for one message id.
// MinLen is the v1 fixed payload size (pre-extension); MaxLen is the
// full payload size v2 frames are padded back to before decode.
type MessageInfo struct {
	MsgID    uint32
	Name     string
	CRCExtra byte
	MinLen   byte
	MaxLen   byte
	Decode   DecodeFunc
	Encode   EncodeFunc
}

// Registry is the lookup capability handed to parsers and sessions.
type Registry interface {
	Lookup(msgID uint32) (MessageInfo, bool)
}

// Table is a mutable Registry backed by a map. Register during setup,
// Lookup from any goroutine afterwards.
type Table struct {
	mu    sync.RWMutex
	infos map[uint32]MessageInfo
}

func NewTable() *Table {
	return &Table{infos: make(map[uint32]MessageInfo)}
}

// Register adds one message's metadata to the table.
func (t *Table) Register(info MessageInfo) error {
	if info.Decode == nil || info.Encode == nil {
		return fmt.Errorf("%w: msgid=%d", ErrNilCodec, info.MsgID)
	}
	if info.MaxLen == 0 || info.MinLen > info.MaxLen {
		return fmt.Errorf("%w: msgid=%d min=%d max=%d", ErrBadLengthBounds, info.MsgID, info.MinLen, info.MaxLen)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.infos[info.MsgID]; ok {
		return fmt.Errorf("%w: msgid=%d", ErrDuplicateMessage, info.MsgID)
	}
	t.infos[info.MsgID] = info
	return nil
}

// MustRegister is Register for static dialect tables; it panics on a
// table-construction bug.
func (t *Table) MustRegister(info MessageInfo) {
	if err := t.Register(info); err != nil {
		panic(err)
	}
}

func (t *Table) Lookup(msgID uint32) (MessageInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.infos[msgID]
	return info, ok
}

// Len reports how many message ids the table holds.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.infos)
}
