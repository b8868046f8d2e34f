package codec

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/abk-chicago/flutter/message"
)

// StandardMessageCodec is the compact tagged binary codec used as the default
// for method and event channels.
//
// Wire format, per value:
//
//	┌─────┬────────────┬──────────────┐
//	│ tag │ size?      │ payload ...  │
//	│ 1B  │ 1/3/5 B    │ tag-specific │
//	└─────┴────────────┴──────────────┘
//
// Sizes below 254 take one byte; 0xFE prefixes a uint16, 0xFF a uint32
// (little-endian, like the payloads). Eight-byte payloads (float64 and the
// 64-bit typed lists) are padded to an 8-byte boundary relative to the start
// of the buffer so they can be read with an aligned view; []int32 pads to 4.
//
// Supported domain: nil, bool, signed integers (normalized to int on decode),
// float64 (float32 widens on encode), string, []byte, []int32, []int64,
// []float64, []any, and map[any]any. Values outside the domain fail encode
// with a FormatError. Inbound map keys must be scalars; a wire message
// carrying a collection-typed key fails decode with a FormatError.
type StandardMessageCodec struct{}

const (
	tagNil         byte = 0
	tagTrue        byte = 1
	tagFalse       byte = 2
	tagInt32       byte = 3
	tagInt64       byte = 4
	tagFloat64     byte = 6
	tagString      byte = 7
	tagUint8List   byte = 8
	tagInt32List   byte = 9
	tagInt64List   byte = 10
	tagFloat64List byte = 11
	tagList        byte = 12
	tagMap         byte = 13
)

func (StandardMessageCodec) EncodeMessage(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	w := &standardWriter{}
	if err := w.writeValue(v); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

func (StandardMessageCodec) DecodeMessage(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	r := &standardReader{data: data}
	v, err := r.readValue()
	if err != nil {
		return nil, err
	}
	if r.off != len(data) {
		return nil, formatErr("standard codec: message corrupted, trailing bytes")
	}
	return v, nil
}

// StandardMethodCodec frames method calls and envelopes with the standard
// message codec. A method call is the method name followed by the arguments.
// An envelope starts with a discriminator byte: 0 = success + result value,
// 1 = error + code, message, details values.
type StandardMethodCodec struct{}

func (StandardMethodCodec) EncodeMethodCall(call message.MethodCall) ([]byte, error) {
	w := &standardWriter{}
	if err := w.writeValue(call.Method); err != nil {
		return nil, err
	}
	if err := w.writeValue(call.Arguments); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

func (StandardMethodCodec) DecodeMethodCall(data []byte) (message.MethodCall, error) {
	r := &standardReader{data: data}
	method, err := r.readValue()
	if err != nil {
		return message.MethodCall{}, err
	}
	name, ok := method.(string)
	if !ok {
		return message.MethodCall{}, formatErr("standard codec: method name is not a string")
	}
	args, err := r.readValue()
	if err != nil {
		return message.MethodCall{}, err
	}
	if r.off != len(data) {
		return message.MethodCall{}, formatErr("standard codec: method call corrupted, trailing bytes")
	}
	return message.MethodCall{Method: name, Arguments: args}, nil
}

func (StandardMethodCodec) EncodeSuccessEnvelope(result any) ([]byte, error) {
	w := &standardWriter{}
	w.buf.WriteByte(0)
	if err := w.writeValue(result); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

func (StandardMethodCodec) EncodeErrorEnvelope(code, msg string, details any) ([]byte, error) {
	w := &standardWriter{}
	w.buf.WriteByte(1)
	if err := w.writeValue(code); err != nil {
		return nil, err
	}
	var m any
	if msg != "" {
		m = msg
	}
	if err := w.writeValue(m); err != nil {
		return nil, err
	}
	if err := w.writeValue(details); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

func (StandardMethodCodec) DecodeEnvelope(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, formatErr("standard codec: expected envelope, got nothing")
	}
	// Offset 1 keeps alignment padding consistent with the writer, which
	// counts the discriminator byte.
	r := &standardReader{data: data, off: 1}
	switch data[0] {
	case 0:
		result, err := r.readValue()
		if err != nil {
			return nil, err
		}
		if r.off != len(r.data) {
			return nil, formatErr("standard codec: envelope corrupted, trailing bytes")
		}
		return result, nil
	case 1:
		code, err := r.readValue()
		if err != nil {
			return nil, err
		}
		msg, err := r.readValue()
		if err != nil {
			return nil, err
		}
		details, err := r.readValue()
		if err != nil {
			return nil, err
		}
		codeStr, ok := code.(string)
		if !ok {
			return nil, formatErr("standard codec: error code is not a string")
		}
		msgStr, _ := msg.(string) // nil message decodes as ""
		return nil, &message.PlatformError{Code: codeStr, Message: msgStr, Details: details}
	default:
		return nil, formatErr("standard codec: invalid envelope discriminator")
	}
}

// ---- encoder ----

type standardWriter struct {
	buf bytes.Buffer
}

// writeSize encodes a non-negative collection size.
func (w *standardWriter) writeSize(n int) {
	switch {
	case n < 254:
		w.buf.WriteByte(byte(n))
	case n <= math.MaxUint16:
		w.buf.WriteByte(254)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(n))
		w.buf.Write(b[:])
	default:
		w.buf.WriteByte(255)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(n))
		w.buf.Write(b[:])
	}
}

// align pads the buffer with zero bytes to a multiple of a.
func (w *standardWriter) align(a int) {
	for w.buf.Len()%a != 0 {
		w.buf.WriteByte(0)
	}
}

func (w *standardWriter) writeInt(n int64) {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		w.buf.WriteByte(tagInt32)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(int32(n)))
		w.buf.Write(b[:])
		return
	}
	w.buf.WriteByte(tagInt64)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(n))
	w.buf.Write(b[:])
}

func (w *standardWriter) writeValue(v any) error {
	switch t := v.(type) {
	case nil:
		w.buf.WriteByte(tagNil)
	case bool:
		if t {
			w.buf.WriteByte(tagTrue)
		} else {
			w.buf.WriteByte(tagFalse)
		}
	case int:
		w.writeInt(int64(t))
	case int8:
		w.writeInt(int64(t))
	case int16:
		w.writeInt(int64(t))
	case int32:
		w.writeInt(int64(t))
	case int64:
		w.writeInt(t)
	case float32:
		return w.writeValue(float64(t))
	case float64:
		w.buf.WriteByte(tagFloat64)
		w.align(8)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(t))
		w.buf.Write(b[:])
	case string:
		w.buf.WriteByte(tagString)
		w.writeSize(len(t))
		w.buf.WriteString(t)
	case []byte:
		w.buf.WriteByte(tagUint8List)
		w.writeSize(len(t))
		w.buf.Write(t)
	case []int32:
		w.buf.WriteByte(tagInt32List)
		w.writeSize(len(t))
		w.align(4)
		for _, n := range t {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(n))
			w.buf.Write(b[:])
		}
	case []int64:
		w.buf.WriteByte(tagInt64List)
		w.writeSize(len(t))
		w.align(8)
		for _, n := range t {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(n))
			w.buf.Write(b[:])
		}
	case []float64:
		w.buf.WriteByte(tagFloat64List)
		w.writeSize(len(t))
		w.align(8)
		for _, f := range t {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
			w.buf.Write(b[:])
		}
	case []any:
		w.buf.WriteByte(tagList)
		w.writeSize(len(t))
		for _, e := range t {
			if err := w.writeValue(e); err != nil {
				return err
			}
		}
	case map[any]any:
		w.buf.WriteByte(tagMap)
		w.writeSize(len(t))
		for k, val := range t {
			if err := w.writeValue(k); err != nil {
				return err
			}
			if err := w.writeValue(val); err != nil {
				return err
			}
		}
	default:
		return formatErr("standard codec: unsupported value type")
	}
	return nil
}

// ---- decoder ----

type standardReader struct {
	data []byte
	off  int
}

func (r *standardReader) readByte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, formatErr("standard codec: unexpected end of message")
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *standardReader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, formatErr("standard codec: unexpected end of message")
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *standardReader) readSize() (int, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case 254:
		raw, err := r.readBytes(2)
		if err != nil {
			return 0, err
		}
		return int(binary.LittleEndian.Uint16(raw)), nil
	case 255:
		raw, err := r.readBytes(4)
		if err != nil {
			return 0, err
		}
		return int(binary.LittleEndian.Uint32(raw)), nil
	default:
		return int(b), nil
	}
}

// align skips the zero padding the writer inserted.
func (r *standardReader) align(a int) {
	if mod := r.off % a; mod != 0 {
		r.off += a - mod
	}
}

func (r *standardReader) readValue() (any, error) {
	tag, err := r.readByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNil:
		return nil, nil
	case tagTrue:
		return true, nil
	case tagFalse:
		return false, nil
	case tagInt32:
		raw, err := r.readBytes(4)
		if err != nil {
			return nil, err
		}
		return int(int32(binary.LittleEndian.Uint32(raw))), nil
	case tagInt64:
		raw, err := r.readBytes(8)
		if err != nil {
			return nil, err
		}
		return int(binary.LittleEndian.Uint64(raw)), nil
	case tagFloat64:
		r.align(8)
		raw, err := r.readBytes(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil
	case tagString:
		n, err := r.readSize()
		if err != nil {
			return nil, err
		}
		raw, err := r.readBytes(n)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case tagUint8List:
		n, err := r.readSize()
		if err != nil {
			return nil, err
		}
		raw, err := r.readBytes(n)
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		copy(out, raw)
		return out, nil
	case tagInt32List:
		n, err := r.readSize()
		if err != nil {
			return nil, err
		}
		r.align(4)
		raw, err := r.readBytes(n * 4)
		if err != nil {
			return nil, err
		}
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return out, nil
	case tagInt64List:
		n, err := r.readSize()
		if err != nil {
			return nil, err
		}
		r.align(8)
		raw, err := r.readBytes(n * 8)
		if err != nil {
			return nil, err
		}
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return out, nil
	case tagFloat64List:
		n, err := r.readSize()
		if err != nil {
			return nil, err
		}
		r.align(8)
		raw, err := r.readBytes(n * 8)
		if err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return out, nil
	case tagList:
		n, err := r.readSize()
		if err != nil {
			return nil, err
		}
		// Capacity is bounded by the bytes actually present: a corrupt size
		// must not drive the allocation, only the loop, which fails on the
		// first missing element.
		out := make([]any, 0, min(n, len(r.data)-r.off))
		for i := 0; i < n; i++ {
			v, err := r.readValue()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case tagMap:
		n, err := r.readSize()
		if err != nil {
			return nil, err
		}
		out := make(map[any]any, min(n, (len(r.data)-r.off)/2))
		for i := 0; i < n; i++ {
			k, err := r.readValue()
			if err != nil {
				return nil, err
			}
			v, err := r.readValue()
			if err != nil {
				return nil, err
			}
			// Collection keys are legal in the originating object model but
			// not hashable here.
			switch k.(type) {
			case nil, bool, int, float64, string:
			default:
				return nil, formatErr("standard codec: unhashable map key")
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, formatErr("standard codec: unknown type tag")
	}
}
