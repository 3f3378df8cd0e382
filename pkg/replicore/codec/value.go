// Package codec implements the canonical payload encoding and the wire
// frame format from spec.md §6: deterministic, byte-identical output
// for equal payloads, and a fixed binary frame layout with an optional
// snappy-compressed body.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// EncodeValue writes the canonical encoding of v to buf, returning the
// extended slice. Field ordering for maps is sorted lexically so two
// encoders given equal payloads produce byte-identical output.
func EncodeValue(buf []byte, v types.Value) ([]byte, error) {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case types.KindNull:
		return buf, nil
	case types.KindBool:
		if v.Bool {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case types.KindInt64:
		return encodeMinimalInt(buf, v.Int64), nil
	case types.KindFloat64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], floatBits(v.Float))
		return append(buf, b[:]...), nil
	case types.KindString:
		return encodeLenPrefixed(buf, []byte(v.Str)), nil
	case types.KindBytes:
		return encodeLenPrefixed(buf, v.Bytes), nil
	case types.KindList:
		var countBuf [4]byte
		binary.BigEndian.PutUint32(countBuf[:], uint32(len(v.List)))
		buf = append(buf, countBuf[:]...)
		var err error
		for _, e := range v.List {
			buf, err = EncodeValue(buf, e)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case types.KindMap:
		return EncodePayload(buf, v.Map)
	default:
		return nil, fmt.Errorf("codec: unknown value kind %d", v.Kind)
	}
}

// EncodePayload writes the canonical encoding of a Payload: a 4-byte
// field count followed by, for each field in lexical order, a 2-byte
// name length, the UTF-8 name, and the field's canonical value.
func EncodePayload(buf []byte, p types.Payload) ([]byte, error) {
	fields := p.SortedFields()
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(fields)))
	buf = append(buf, countBuf[:]...)
	for _, name := range fields {
		nameBytes := []byte(name)
		var nlBuf [2]byte
		binary.BigEndian.PutUint16(nlBuf[:], uint16(len(nameBytes)))
		buf = append(buf, nlBuf[:]...)
		buf = append(buf, nameBytes...)
		var err error
		buf, err = EncodeValue(buf, p[name])
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// DecodeValue reads a canonical value from buf, returning the decoded
// value and the number of bytes consumed.
func DecodeValue(buf []byte) (types.Value, int, error) {
	if len(buf) < 1 {
		return types.Value{}, 0, fmt.Errorf("codec: truncated value tag")
	}
	kind := types.Kind(buf[0])
	rest := buf[1:]
	switch kind {
	case types.KindNull:
		return types.NullValue(), 1, nil
	case types.KindBool:
		if len(rest) < 1 {
			return types.Value{}, 0, fmt.Errorf("codec: truncated bool")
		}
		return types.BoolValue(rest[0] != 0), 2, nil
	case types.KindInt64:
		i, n, err := decodeMinimalInt(rest)
		if err != nil {
			return types.Value{}, 0, err
		}
		return types.IntValue(i), 1 + n, nil
	case types.KindFloat64:
		if len(rest) < 8 {
			return types.Value{}, 0, fmt.Errorf("codec: truncated float64")
		}
		f := bitsFloat(binary.BigEndian.Uint64(rest[:8]))
		return types.FloatValue(f), 9, nil
	case types.KindString:
		s, n, err := decodeLenPrefixed(rest)
		if err != nil {
			return types.Value{}, 0, err
		}
		return types.StringValue(string(s)), 1 + n, nil
	case types.KindBytes:
		b, n, err := decodeLenPrefixed(rest)
		if err != nil {
			return types.Value{}, 0, err
		}
		return types.BytesValue(b), 1 + n, nil
	case types.KindList:
		if len(rest) < 4 {
			return types.Value{}, 0, fmt.Errorf("codec: truncated list count")
		}
		count := binary.BigEndian.Uint32(rest[:4])
		consumed := 1 + 4
		rest = rest[4:]
		list := make([]types.Value, 0, count)
		for i := uint32(0); i < count; i++ {
			v, n, err := DecodeValue(rest)
			if err != nil {
				return types.Value{}, 0, err
			}
			list = append(list, v)
			rest = rest[n:]
			consumed += n
		}
		return types.Value{Kind: types.KindList, List: list}, consumed, nil
	case types.KindMap:
		p, n, err := DecodePayload(rest)
		if err != nil {
			return types.Value{}, 0, err
		}
		return types.MapValue(p), 1 + n, nil
	default:
		return types.Value{}, 0, fmt.Errorf("codec: unknown value kind tag %d", kind)
	}
}

// DecodePayload reads a canonical payload from buf, returning the
// decoded payload and the number of bytes consumed.
func DecodePayload(buf []byte) (types.Payload, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("codec: truncated payload field count")
	}
	count := binary.BigEndian.Uint32(buf[:4])
	consumed := 4
	rest := buf[4:]
	p := make(types.Payload, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < 2 {
			return nil, 0, fmt.Errorf("codec: truncated field name length")
		}
		nameLen := binary.BigEndian.Uint16(rest[:2])
		rest = rest[2:]
		consumed += 2
		if len(rest) < int(nameLen) {
			return nil, 0, fmt.Errorf("codec: truncated field name")
		}
		name := string(rest[:nameLen])
		rest = rest[nameLen:]
		consumed += int(nameLen)
		v, n, err := DecodeValue(rest)
		if err != nil {
			return nil, 0, err
		}
		p[name] = v
		rest = rest[n:]
		consumed += n
	}
	return p, consumed, nil
}

func encodeLenPrefixed(buf []byte, data []byte) []byte {
	var lbuf [4]byte
	binary.BigEndian.PutUint32(lbuf[:], uint32(len(data)))
	buf = append(buf, lbuf[:]...)
	return append(buf, data...)
}

func decodeLenPrefixed(buf []byte) ([]byte, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("codec: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(buf[:4])
	if uint32(len(buf)-4) < n {
		return nil, 0, fmt.Errorf("codec: truncated length-prefixed data")
	}
	return buf[4 : 4+n], 4 + int(n), nil
}

// encodeMinimalInt writes a 1-byte length followed by the minimal
// two's-complement big-endian representation of i.
func encodeMinimalInt(buf []byte, i int64) []byte {
	b := minimalTwosComplement(i)
	buf = append(buf, byte(len(b)))
	return append(buf, b...)
}

func decodeMinimalInt(buf []byte) (int64, int, error) {
	if len(buf) < 1 {
		return 0, 0, fmt.Errorf("codec: truncated int length")
	}
	n := int(buf[0])
	if len(buf) < 1+n {
		return 0, 0, fmt.Errorf("codec: truncated int body")
	}
	body := buf[1 : 1+n]
	return fromTwosComplement(body), 1 + n, nil
}

// minimalTwosComplement returns the shortest big-endian two's-complement
// byte sequence representing i (0 bytes for i == 0).
func minimalTwosComplement(i int64) []byte {
	if i == 0 {
		return nil
	}
	var full [8]byte
	binary.BigEndian.PutUint64(full[:], uint64(i))
	start := 0
	for start < 7 {
		b := full[start]
		next := full[start+1]
		// Stop trimming once the leading byte no longer is a pure
		// sign-extension of the next byte's top bit.
		if (b == 0x00 && next&0x80 == 0) || (b == 0xff && next&0x80 != 0) {
			start++
			continue
		}
		break
	}
	return full[start:]
}

func fromTwosComplement(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var full [8]byte
	if b[0]&0x80 != 0 {
		for i := range full {
			full[i] = 0xff
		}
	}
	copy(full[8-len(b):], b)
	return int64(binary.BigEndian.Uint64(full[:]))
}
