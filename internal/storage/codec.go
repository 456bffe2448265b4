package storage

import (
	"encoding/binary"
	"fmt"
)

// counterSize is the persisted width of a counter: a little-endian int32
const counterSize = 4

func encodeCount(v int32) []byte {
	buf := make([]byte, counterSize)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

func decodeCount(buf []byte) (int32, error) {
	if len(buf) != counterSize {
		return 0, fmt.Errorf("malformed counter: %d bytes", len(buf))
	}
	return int32(binary.LittleEndian.Uint32(buf)), nil
}
