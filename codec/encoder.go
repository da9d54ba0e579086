package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"

	"github.com/nasdf/docproxy/fieldop"
	"github.com/nasdf/docproxy/transport"
)

type Encoder struct {
	w *bufio.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{bufio.NewWriter(w)}
}

func (e *Encoder) Flush() error {
	return e.w.Flush()
}

func (e *Encoder) Encode(value any) error {
	switch t := value.(type) {
	case nil:
		return e.w.WriteByte(kindNull)
	case *transport.Snapshot:
		return e.EncodeSnapshot(t)
	case transport.Payload:
		return e.EncodeMap(t)
	case fieldop.Op:
		return e.EncodeOp(t)
	case []byte:
		return e.EncodeBytes(t)
	case string:
		return e.EncodeString(t)
	case int64:
		return e.EncodeInt64(t)
	case float64:
		return e.EncodeFloat64(t)
	case bool:
		return e.EncodeBool(t)
	case []any:
		return e.EncodeList(t)
	case map[string]any:
		return e.EncodeMap(t)
	default:
		return fmt.Errorf("no encoder for %T", value)
	}
}

// EncodeSnapshot writes the snapshot path before its contents.
func (e *Encoder) EncodeSnapshot(value *transport.Snapshot) error {
	if err := e.w.WriteByte(kindSnapshot); err != nil {
		return err
	}
	if err := e.EncodeString(value.Ref.Path()); err != nil {
		return err
	}
	if err := e.EncodeBool(value.Exists); err != nil {
		return err
	}
	return e.EncodeMap(value.ToMap())
}

// EncodeOp writes the operation kind followed by its operand, if any.
func (e *Encoder) EncodeOp(value fieldop.Op) error {
	var (
		kind    byte
		operand any
	)
	switch o := value.(type) {
	case fieldop.ArrayUnion:
		kind, operand = kindArrayUnion, o.Values
	case fieldop.ArrayRemove:
		kind, operand = kindArrayRemove, o.Values
	case fieldop.Increment:
		kind, operand = kindIncrement, o.Amount
	default:
		if !fieldop.IsDelete(value) {
			return fmt.Errorf("no encoder for field operation %s", value.Kind())
		}
		return e.w.WriteByte(kindDelete)
	}
	if err := e.w.WriteByte(kind); err != nil {
		return err
	}
	return e.Encode(operand)
}

func (e *Encoder) EncodeBytes(value []byte) error {
	if err := e.header(kindBytes, len(value)); err != nil {
		return err
	}
	_, err := e.w.Write(value)
	return err
}

func (e *Encoder) EncodeString(value string) error {
	if err := e.header(kindString, len(value)); err != nil {
		return err
	}
	_, err := e.w.WriteString(value)
	return err
}

func (e *Encoder) EncodeInt64(value int64) error {
	if err := e.w.WriteByte(kindInt64); err != nil {
		return err
	}
	return e.writeUint64(uint64(value))
}

func (e *Encoder) EncodeFloat64(value float64) error {
	if err := e.w.WriteByte(kindFloat64); err != nil {
		return err
	}
	return e.writeUint64(math.Float64bits(value))
}

func (e *Encoder) EncodeBool(value bool) error {
	if err := e.w.WriteByte(kindBool); err != nil {
		return err
	}
	var b byte
	if value {
		b = 1
	}
	return e.w.WriteByte(b)
}

func (e *Encoder) EncodeList(value []any) error {
	if err := e.header(kindList, len(value)); err != nil {
		return err
	}
	for _, v := range value {
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

// EncodeMap writes the entries sorted by key so equal maps encode identically.
func (e *Encoder) EncodeMap(value map[string]any) error {
	if err := e.header(kindMap, len(value)); err != nil {
		return err
	}
	for _, k := range slices.Sorted(maps.Keys(value)) {
		if err := e.EncodeString(k); err != nil {
			return err
		}
		if err := e.Encode(value[k]); err != nil {
			return err
		}
	}
	return nil
}

// header writes the kind followed by a length prefix.
func (e *Encoder) header(kind byte, size int) error {
	if err := e.w.WriteByte(kind); err != nil {
		return err
	}
	return e.writeUint64(uint64(size))
}

func (e *Encoder) writeUint64(value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	_, err := e.w.Write(buf[:])
	return err
}
