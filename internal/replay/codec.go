package replay

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/joptimus/fox-replay-system/internal/frame"
)

// EncodeFrame serializes one frame as a length-prefixed binary record: a
// 4-byte little-endian length followed by the frame's MessagePack
// encoding. MessagePack keeps the per-frame payload compact (every field a
// short binary key/value instead of JSON text) while staying a
// self-describing map the client can decode without a schema.
func EncodeFrame(w io.Writer, f *frame.Frame) error {
	data, err := msgpack.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	// One Write per record: sinks that map writes to transport messages
	// (e.g. a websocket binary message per frame) rely on this.
	record := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(record, uint32(len(data)))
	copy(record[4:], data)
	if _, err := w.Write(record); err != nil {
		return fmt.Errorf("write frame record: %w", err)
	}
	return nil
}

// DecodeFrame reads one length-prefixed frame record from r.
func DecodeFrame(r io.Reader) (*frame.Frame, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf)

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	var f frame.Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	return &f, nil
}

// PreserializeBinary encodes every frame into one length-prefixed binary
// blob, for sessions small enough to pre-serialize (see Session.preserialize).
func PreserializeBinary(frames []*frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	for _, f := range frames {
		if err := EncodeFrame(&buf, f); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
