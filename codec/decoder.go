package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/nasdf/docproxy/fieldop"
	"github.com/nasdf/docproxy/transport"
)

type Decoder struct {
	r     *bufio.Reader
	depth int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

func (e *Decoder) Decode() (any, error) {
	kind, err := e.r.ReadByte()
	if err != nil {
		return nil, err
	}
	err = e.r.UnreadByte()
	if err != nil {
		return nil, err
	}
	switch kind {
	case kindNull:
		_, err := e.r.ReadByte()
		return nil, err
	case kindSnapshot:
		return e.DecodeSnapshot()
	case kindDelete, kindArrayUnion, kindArrayRemove, kindIncrement:
		return e.DecodeOp()
	case kindBytes:
		return e.DecodeBytes()
	case kindString:
		return e.DecodeString()
	case kindInt64:
		return e.DecodeInt64()
	case kindFloat64:
		return e.DecodeFloat64()
	case kindBool:
		return e.DecodeBool()
	case kindList:
		return e.DecodeList()
	case kindMap:
		return e.DecodeMap()
	default:
		return nil, fmt.Errorf("invalid codec kind %x", kind)
	}
}

func (e *Decoder) DecodeSnapshot() (*transport.Snapshot, error) {
	if err := e.expect(kindSnapshot); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	path, err := e.DecodeString()
	if err != nil {
		return nil, err
	}
	ref, err := transport.NewRef(path)
	if err != nil {
		return nil, err
	}
	exists, err := e.DecodeBool()
	if err != nil {
		return nil, err
	}
	data, err := e.DecodeMap()
	if err != nil {
		return nil, err
	}
	return &transport.Snapshot{Ref: ref, Exists: exists, Data: data}, nil
}

// DecodePayload reads a map of plain values and field operations.
func (e *Decoder) DecodePayload() (transport.Payload, error) {
	data, err := e.DecodeMap()
	if err != nil {
		return nil, err
	}
	return transport.Payload(data), nil
}

func (e *Decoder) DecodeOp() (fieldop.Op, error) {
	kind, err := e.r.ReadByte()
	if err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()
	switch kind {
	case kindDelete:
		return fieldop.Delete, nil
	case kindIncrement:
		amount, err := e.Decode()
		if err != nil {
			return nil, err
		}
		return fieldop.NewIncrement(amount)
	case kindArrayUnion, kindArrayRemove:
		values, err := e.DecodeList()
		if err != nil {
			return nil, err
		}
		if kind == kindArrayUnion {
			return fieldop.ArrayUnion{Values: values}, nil
		}
		return fieldop.ArrayRemove{Values: values}, nil
	default:
		return nil, fmt.Errorf("unexpected codec kind %x", kind)
	}
}

func (e *Decoder) DecodeBytes() ([]byte, error) {
	size, err := e.header(kindBytes)
	if err != nil {
		return nil, err
	}
	return e.readBytes(size)
}

func (e *Decoder) DecodeString() (string, error) {
	size, err := e.header(kindString)
	if err != nil {
		return "", err
	}
	value, err := e.readBytes(size)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (e *Decoder) DecodeInt64() (int64, error) {
	if err := e.expect(kindInt64); err != nil {
		return 0, err
	}
	value, err := e.readUint64()
	return int64(value), err
}

func (e *Decoder) DecodeFloat64() (float64, error) {
	if err := e.expect(kindFloat64); err != nil {
		return 0, err
	}
	value, err := e.readUint64()
	return math.Float64frombits(value), err
}

func (e *Decoder) DecodeBool() (bool, error) {
	if err := e.expect(kindBool); err != nil {
		return false, err
	}
	value, err := e.r.ReadByte()
	return value != 0, err
}

func (e *Decoder) DecodeList() ([]any, error) {
	size, err := e.header(kindList)
	if err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	value := make([]any, 0, min(size, maxPrealloc))
	for range size {
		v, err := e.Decode()
		if err != nil {
			return nil, err
		}
		value = append(value, v)
	}
	return value, nil
}

func (e *Decoder) DecodeMap() (map[string]any, error) {
	size, err := e.header(kindMap)
	if err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	value := make(map[string]any, min(size, maxPrealloc))
	for range size {
		k, err := e.DecodeString()
		if err != nil {
			return nil, err
		}
		if value[k], err = e.Decode(); err != nil {
			return nil, err
		}
	}
	return value, nil
}

// readBytes reads size bytes, growing the buffer as data arrives.
func (e *Decoder) readBytes(size int) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	buf.Grow(min(size, maxPrealloc))
	n, err := io.CopyN(&buf, e.r, int64(size))
	if err != nil {
		return nil, err
	}
	if n != int64(size) {
		return nil, io.ErrUnexpectedEOF
	}
	return buf.Bytes(), nil
}

func (e *Decoder) enter() error {
	if e.depth >= MaxDepth {
		return fmt.Errorf("codec nesting exceeds depth %d", MaxDepth)
	}
	e.depth++
	return nil
}

func (e *Decoder) leave() {
	e.depth--
}

func (e *Decoder) expect(kind byte) error {
	actual, err := e.r.ReadByte()
	if err != nil {
		return err
	}
	if actual != kind {
		return fmt.Errorf("unexpected codec kind %x", actual)
	}
	return nil
}

// header reads the kind and the length prefix that follows it.
func (e *Decoder) header(kind byte) (int, error) {
	if err := e.expect(kind); err != nil {
		return 0, err
	}
	size, err := e.readUint64()
	if err != nil {
		return 0, err
	}
	if size > maxSize {
		return 0, fmt.Errorf("codec length %d exceeds limit", size)
	}
	return int(size), nil
}

func (e *Decoder) readUint64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(e.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
