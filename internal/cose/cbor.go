package cose

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"
)

const (
	maxByteLength = 1 << 20
	maxItems      = 1024
	maxDepth      = 8

	simpleFalse = 20
	simpleTrue  = 21
)

func writeInt(cw *cbg.CborWriter, v int64) error {
	if v >= 0 {
		return cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(v))
	}
	return cw.WriteMajorTypeHeader(cbg.MajNegativeInt, uint64(-v-1))
}

func writeBytes(cw *cbg.CborWriter, b []byte) error {
	if len(b) > maxByteLength {
		return xerrors.Errorf("byte string too long (%d)", len(b))
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajByteString, uint64(len(b))); err != nil {
		return err
	}
	_, err := cw.Write(b)
	return err
}

func writeText(cw *cbg.CborWriter, s string) error {
	if len(s) > maxByteLength {
		return xerrors.Errorf("text string too long (%d)", len(s))
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajTextString, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(cw, s)
	return err
}

// writeValue encodes the value types a COSE header or key parameter may carry.
func writeValue(cw *cbg.CborWriter, v any) error {
	switch x := v.(type) {
	case int64:
		return writeInt(cw, x)
	case int:
		return writeInt(cw, int64(x))
	case []byte:
		return writeBytes(cw, x)
	case string:
		return writeText(cw, x)
	case bool:
		if x {
			_, err := cw.Write(cbg.CborBoolTrue)
			return err
		}
		_, err := cw.Write(cbg.CborBoolFalse)
		return err
	case []int64:
		if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(x))); err != nil {
			return err
		}
		for _, e := range x {
			if err := writeInt(cw, e); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(x))); err != nil {
			return err
		}
		for _, e := range x {
			if err := writeValue(cw, e); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported cbor value type %T", v)
	}
}

// mapEntry is one pre-encoded map label and its value.
type mapEntry struct {
	key   []byte
	value any
}

func encodeLabel(label any) ([]byte, error) {
	var buf bytes.Buffer
	cw := cbg.NewCborWriter(&buf)
	switch l := label.(type) {
	case int64:
		if err := writeInt(cw, l); err != nil {
			return nil, err
		}
	case string:
		if err := writeText(cw, l); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported map label type %T", label)
	}
	return buf.Bytes(), nil
}

// writeMap writes entries in deterministic order: shorter encoded keys first,
// then bytewise.
func writeMap(cw *cbg.CborWriter, entries []mapEntry) error {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].key, entries[j].key
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return bytes.Compare(a, b) < 0
	})
	if err := cw.WriteMajorTypeHeader(cbg.MajMap, uint64(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := cw.Write(e.key); err != nil {
			return err
		}
		if err := writeValue(cw, e.value); err != nil {
			return err
		}
	}
	return nil
}

func readInt(cr *cbg.CborReader) (int64, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return 0, err
	}
	return intFromHeader(maj, extra)
}

func intFromHeader(maj byte, extra uint64) (int64, error) {
	switch maj {
	case cbg.MajUnsignedInt:
		if extra > math.MaxInt64 {
			return 0, fmt.Errorf("int64 positive overflow")
		}
		return int64(extra), nil
	case cbg.MajNegativeInt:
		if extra > math.MaxInt64 {
			return 0, fmt.Errorf("int64 negative overflow")
		}
		return -1 - int64(extra), nil
	default:
		return 0, fmt.Errorf("wrong type for int64 field: %d", maj)
	}
}

func readBytes(cr *cbg.CborReader) ([]byte, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return nil, err
	}
	if maj != cbg.MajByteString {
		return nil, fmt.Errorf("expected byte array, got major type %d", maj)
	}
	return readPayload(cr, extra)
}

func readPayload(cr *cbg.CborReader, n uint64) ([]byte, error) {
	if n > maxByteLength {
		return nil, fmt.Errorf("byte array too large (%d)", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(cr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readValue decodes a single data item into int64, []byte, string, bool or []any.
func readValue(cr *cbg.CborReader, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("cbor nesting too deep")
	}
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return nil, err
	}
	switch maj {
	case cbg.MajUnsignedInt, cbg.MajNegativeInt:
		return intFromHeader(maj, extra)
	case cbg.MajByteString:
		return readPayload(cr, extra)
	case cbg.MajTextString:
		b, err := readPayload(cr, extra)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case cbg.MajArray:
		if extra > maxItems {
			return nil, fmt.Errorf("array too large (%d)", extra)
		}
		out := make([]any, 0, extra)
		for i := uint64(0); i < extra; i++ {
			v, err := readValue(cr, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case cbg.MajOther:
		switch extra {
		case simpleFalse:
			return false, nil
		case simpleTrue:
			return true, nil
		}
		return nil, fmt.Errorf("unsupported simple value %d", extra)
	default:
		return nil, fmt.Errorf("unsupported cbor major type %d", maj)
	}
}

// readMap decodes a map with int or text labels.
func readMap(cr *cbg.CborReader, fn func(label any, value any) error) error {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return err
	}
	if maj != cbg.MajMap {
		return fmt.Errorf("cbor input should be of type map")
	}
	if extra > maxItems {
		return fmt.Errorf("map too large (%d)", extra)
	}
	for i := uint64(0); i < extra; i++ {
		maj, lextra, err := cr.ReadHeader()
		if err != nil {
			return err
		}
		var label any
		switch maj {
		case cbg.MajUnsignedInt, cbg.MajNegativeInt:
			if label, err = intFromHeader(maj, lextra); err != nil {
				return err
			}
		case cbg.MajTextString:
			b, err := readPayload(cr, lextra)
			if err != nil {
				return err
			}
			label = string(b)
		default:
			return fmt.Errorf("unsupported map label type %d", maj)
		}
		value, err := readValue(cr, 1)
		if err != nil {
			return xerrors.Errorf("reading value for label %v: %w", label, err)
		}
		if err := fn(label, value); err != nil {
			return err
		}
	}
	return nil
}

// expectEOF fails when trailing bytes follow a decoded item.
func expectEOF(r *bytes.Reader) error {
	if r.Len() != 0 {
		return fmt.Errorf("unexpected %d trailing bytes", r.Len())
	}
	return nil
}

// MarshalBytes encodes b as a CBOR byte string.
func MarshalBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeBytes(cbg.NewCborWriter(&buf), b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
