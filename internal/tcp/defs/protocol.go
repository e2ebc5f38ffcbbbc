package defs

import (
	"time"

	"gitlab.com/effect-network.net/internal/protocol"
)

// Protocol constants
const (
	MagicNumber uint16 = 0xCAFE
	HeaderSize         = 8
	MaxFrameSize       = 4 << 20

	// Frame types
	FrameHello   byte = 0x01
	FrameSession byte = 0x02
	FrameEffect  byte = 0x03
	FrameError   byte = 0x07

	// Configuration constants
	HelloTimeout         = 30 * time.Second
	ConnectionRetryDelay = 1 * time.Second
	DialTimeout          = 10 * time.Second
)

var frameProtocols = map[byte]string{
	FrameSession: protocol.SessionProtocol,
	FrameEffect:  protocol.EffectProtocol,
}

// ProtocolOf returns the stream protocol carried by a frame type
func ProtocolOf(frame byte) (string, bool) {
	p, ok := frameProtocols[frame]
	return p, ok
}

// FrameOf returns the frame type that carries proto
func FrameOf(proto string) (byte, bool) {
	for frame, p := range frameProtocols {
		if p == proto {
			return frame, true
		}
	}
	return 0, false
}
