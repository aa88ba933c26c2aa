// Package common is a small table of standard MAVLink messages
// expressed as registry data. The wire engine never depends on it; it
// exists so sessions and parsers have real layouts to work with, and
// any generated dialect can replace it through the same capability.
package common

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/mavkit/mavctl/internal/mavlink/registry"
)

const (
	MsgIDHeartbeat          uint32 = 0
	MsgIDAttitude           uint32 = 30
	MsgIDRCChannelsOverride uint32 = 70
	MsgIDStatustext         uint32 = 253
)

// Heartbeat reports type, autopilot and system state (msgid 0).
type Heartbeat struct {
	CustomMode     uint32
	Type           byte
	Autopilot      byte
	BaseMode       byte
	SystemStatus   byte
	MavlinkVersion byte
}

func (Heartbeat) MsgID() uint32 { return MsgIDHeartbeat }

// Attitude is the vehicle attitude in radians (msgid 30).
type Attitude struct {
	TimeBootMs uint32
	Roll       float32
	Pitch      float32
	Yaw        float32
	Rollspeed  float32
	Pitchspeed float32
	Yawspeed   float32
}

func (Attitude) MsgID() uint32 { return MsgIDAttitude }

// RCChannelsOverride pushes raw RC channel values (msgid 70).
type RCChannelsOverride struct {
	Channels        [8]uint16
	TargetSystem    byte
	TargetComponent byte
}

func (RCChannelsOverride) MsgID() uint32 { return MsgIDRCChannelsOverride }

// Statustext carries a severity-tagged status string (msgid 253).
// Text longer than 50 bytes is truncated on encode.
type Statustext struct {
	Severity byte
	Text     string
}

func (Statustext) MsgID() uint32 { return MsgIDStatustext }

const statustextLen = 50

// NewTable builds a registry table with this dialect's messages.
func NewTable() *registry.Table {
	t := registry.NewTable()
	t.MustRegister(registry.MessageInfo{
		MsgID: MsgIDHeartbeat, Name: "HEARTBEAT", CRCExtra: 239, MinLen: 9, MaxLen: 9,
		Decode: decodeHeartbeat, Encode: encodeHeartbeat,
	})
	t.MustRegister(registry.MessageInfo{
		MsgID: MsgIDAttitude, Name: "ATTITUDE", CRCExtra: 39, MinLen: 28, MaxLen: 28,
		Decode: decodeAttitude, Encode: encodeAttitude,
	})
	t.MustRegister(registry.MessageInfo{
		MsgID: MsgIDRCChannelsOverride, Name: "RC_CHANNELS_OVERRIDE", CRCExtra: 124, MinLen: 18, MaxLen: 18,
		Decode: decodeRCChannelsOverride, Encode: encodeRCChannelsOverride,
	})
	t.MustRegister(registry.MessageInfo{
		MsgID: MsgIDStatustext, Name: "STATUSTEXT", CRCExtra: 83, MinLen: 51, MaxLen: 51,
		Decode: decodeStatustext, Encode: encodeStatustext,
	})
	return t
}

func encodeHeartbeat(msg registry.Message) ([]byte, error) {
	m, ok := msg.(Heartbeat)
	if !ok {
		return nil, typeError("HEARTBEAT", msg)
	}
	buf := make([]byte, 9)
	binary.LittleEndian.PutUint32(buf[0:4], m.CustomMode)
	buf[4] = m.Type
	buf[5] = m.Autopilot
	buf[6] = m.BaseMode
	buf[7] = m.SystemStatus
	buf[8] = m.MavlinkVersion
	return buf, nil
}

func decodeHeartbeat(payload []byte) (registry.Message, error) {
	if len(payload) < 9 {
		return nil, lengthError("HEARTBEAT", 9, len(payload))
	}
	return Heartbeat{
		CustomMode:     binary.LittleEndian.Uint32(payload[0:4]),
		Type:           payload[4],
		Autopilot:      payload[5],
		BaseMode:       payload[6],
		SystemStatus:   payload[7],
		MavlinkVersion: payload[8],
	}, nil
}

func encodeAttitude(msg registry.Message) ([]byte, error) {
	m, ok := msg.(Attitude)
	if !ok {
		return nil, typeError("ATTITUDE", msg)
	}
	buf := make([]byte, 28)
	binary.LittleEndian.PutUint32(buf[0:4], m.TimeBootMs)
	for i, v := range []float32{m.Roll, m.Pitch, m.Yaw, m.Rollspeed, m.Pitchspeed, m.Yawspeed} {
		binary.LittleEndian.PutUint32(buf[4+4*i:], math.Float32bits(v))
	}
	return buf, nil
}

func decodeAttitude(payload []byte) (registry.Message, error) {
	if len(payload) < 28 {
		return nil, lengthError("ATTITUDE", 28, len(payload))
	}
	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))
	}
	return Attitude{
		TimeBootMs: binary.LittleEndian.Uint32(payload[0:4]),
		Roll:       f(4),
		Pitch:      f(8),
		Yaw:        f(12),
		Rollspeed:  f(16),
		Pitchspeed: f(20),
		Yawspeed:   f(24),
	}, nil
}

func encodeRCChannelsOverride(msg registry.Message) ([]byte, error) {
	m, ok := msg.(RCChannelsOverride)
	if !ok {
		return nil, typeError("RC_CHANNELS_OVERRIDE", msg)
	}
	buf := make([]byte, 18)
	for i, v := range m.Channels {
		binary.LittleEndian.PutUint16(buf[2*i:], v)
	}
	buf[16] = m.TargetSystem
	buf[17] = m.TargetComponent
	return buf, nil
}

func decodeRCChannelsOverride(payload []byte) (registry.Message, error) {
	if len(payload) < 18 {
		return nil, lengthError("RC_CHANNELS_OVERRIDE", 18, len(payload))
	}
	var m RCChannelsOverride
	for i := range m.Channels {
		m.Channels[i] = binary.LittleEndian.Uint16(payload[2*i:])
	}
	m.TargetSystem = payload[16]
	m.TargetComponent = payload[17]
	return m, nil
}

func encodeStatustext(msg registry.Message) ([]byte, error) {
	m, ok := msg.(Statustext)
	if !ok {
		return nil, typeError("STATUSTEXT", msg)
	}
	buf := make([]byte, 1+statustextLen)
	buf[0] = m.Severity
	copy(buf[1:], m.Text)
	return buf, nil
}

func decodeStatustext(payload []byte) (registry.Message, error) {
	if len(payload) < 1+statustextLen {
		return nil, lengthError("STATUSTEXT", 1+statustextLen, len(payload))
	}
	text := strings.TrimRight(string(payload[1:1+statustextLen]), "\x00")
	return Statustext{Severity: payload[0], Text: text}, nil
}

func typeError(name string, msg registry.Message) error {
	return fmt.Errorf("common: %s encode: unexpected message type %T", name, msg)
}

func lengthError(name string, want, got int) error {
	return fmt.Errorf("common: %s decode: payload too short: want %d got %d", name, want, got)
}
