package embcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Entry layout: one version byte, the dimension count as uint32 LE, then
// the components as float32 LE.
const (
	codecVersion = 1
	headerLen    = 5
)

var errBadEntry = errors.New("malformed cache entry")

func encodeVector(v []float32) []byte {
	buf := make([]byte, headerLen+len(v)*4)
	buf[0] = codecVersion
	binary.LittleEndian.PutUint32(buf[1:], uint32(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[headerLen+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < headerLen || data[0] != codecVersion {
		return nil, fmt.Errorf("%w: len=%d", errBadEntry, len(data))
	}
	n := int(binary.LittleEndian.Uint32(data[1:]))
	if len(data)-headerLen != n*4 {
		return nil, fmt.Errorf("%w: header says %d dims, payload has %d bytes", errBadEntry, n, len(data)-headerLen)
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[headerLen+i*4:]))
	}
	return vec, nil
}
