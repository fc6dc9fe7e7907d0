package utils

import (
	"bytes"
	"sync"
)

// MaxPacketLen is enough for any udp payload (65535-20-8) and for the tcp
// copy loop.
const MaxPacketLen = 64 * 1024

var (
	packetPool = sync.Pool{
		New: func() any {
			return make([]byte, MaxPacketLen)
		},
	}

	bufPool = sync.Pool{
		New: func() any {
			return &bytes.Buffer{}
		},
	}
)

func GetBuf() *bytes.Buffer {
	return bufPool.Get().(*bytes.Buffer)
}

func PutBuf(buf *bytes.Buffer) {
	buf.Reset()
	bufPool.Put(buf)
}

// GetPacket returns a MaxPacketLen sized buffer, suitable for reading a whole
// udp packet in one call.
func GetPacket() []byte {
	return packetPool.Get().([]byte)
}

func PutPacket(bs []byte) {
	if cap(bs) < MaxPacketLen {
		return
	}
	packetPool.Put(bs[:MaxPacketLen])
}

// GetBytes returns a buffer of exactly the given size.
func GetBytes(size int) []byte {
	if size > MaxPacketLen {
		return make([]byte, size)
	}
	bs := packetPool.Get().([]byte)
	return bs[:size]
}

func PutBytes(bs []byte) {
	PutPacket(bs)
}
