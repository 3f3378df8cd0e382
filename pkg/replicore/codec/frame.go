package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

const compressedTypeBit = 0x80

// envelope field names for the metadata packed alongside a message's
// user-visible Body inside the frame's wire body.
const (
	fieldID            = "id"
	fieldPriority      = "priority"
	fieldRequiresAck   = "requires_ack"
	fieldEntity        = "entity"
	fieldVersion       = "version"
	fieldBaseline      = "baseline"
	fieldRetryCount    = "retry_count"
	fieldFirstSentTick = "first_sent_tick"
	fieldBody          = "body"
)

func envelope(m types.Message) types.Payload {
	return types.Payload{
		fieldID:            types.StringValue(string(m.ID)),
		fieldPriority:       types.IntValue(int64(m.Priority)),
		fieldRequiresAck:    types.BoolValue(m.RequiresAck),
		fieldEntity:         types.StringValue(string(m.EntityID)),
		fieldVersion:        types.IntValue(int64(m.Version)),
		fieldBaseline:       types.IntValue(int64(m.Baseline)),
		fieldRetryCount:     types.IntValue(int64(m.RetryCount)),
		fieldFirstSentTick:  types.IntValue(int64(m.FirstSentTick)),
		fieldBody:           types.MapValue(m.Body),
	}
}

func fromEnvelope(p types.Payload, m *types.Message) error {
	get := func(name string) (types.Value, bool) {
		v, ok := p[name]
		return v, ok
	}
	if v, ok := get(fieldID); ok {
		m.ID = types.UID(v.Str)
	}
	if v, ok := get(fieldPriority); ok {
		m.Priority = types.Priority(v.Int64)
	}
	if v, ok := get(fieldRequiresAck); ok {
		m.RequiresAck = v.Bool
	}
	if v, ok := get(fieldEntity); ok {
		m.EntityID = types.EntityID(v.Str)
	}
	if v, ok := get(fieldVersion); ok {
		m.Version = uint64(v.Int64)
	}
	if v, ok := get(fieldBaseline); ok {
		m.Baseline = uint64(v.Int64)
	}
	if v, ok := get(fieldRetryCount); ok {
		m.RetryCount = int(v.Int64)
	}
	if v, ok := get(fieldFirstSentTick); ok {
		m.FirstSentTick = types.Tick(v.Int64)
	}
	if v, ok := get(fieldBody); ok {
		m.Body = v.Map
	}
	return nil
}

// EncodeFrame writes m as the exact wire layout from spec.md §6: 1-byte
// type tag, 4-byte big-endian sequence number, 8-byte tick, 2-byte
// origin length, origin bytes, 2-byte body length, body bytes. The body
// is the canonical encoding of the message envelope, snappy-compressed
// (with the tag's high bit set) when it exceeds compressionThreshold
// bytes uncompressed.
func EncodeFrame(m types.Message, compressionThreshold int) ([]byte, error) {
	body, err := EncodePayload(nil, envelope(m))
	if err != nil {
		return nil, fmt.Errorf("codec: encode envelope: %w", err)
	}

	tag := byte(m.Type)
	if compressionThreshold >= 0 && len(body) > compressionThreshold {
		body = snappy.Encode(nil, body)
		tag |= compressedTypeBit
	}

	origin := []byte(m.Origin)
	if len(origin) > 0xffff {
		return nil, fmt.Errorf("codec: origin id too long (%d bytes)", len(origin))
	}
	if len(body) > 0xffff {
		return nil, fmt.Errorf("codec: body too long (%d bytes)", len(body))
	}

	out := make([]byte, 0, 1+4+8+2+len(origin)+2+len(body))
	out = append(out, tag)
	var seqBuf [4]byte
	binary.BigEndian.PutUint32(seqBuf[:], uint32(m.Sequence))
	out = append(out, seqBuf[:]...)
	var tickBuf [8]byte
	binary.BigEndian.PutUint64(tickBuf[:], uint64(m.FirstSentTick))
	out = append(out, tickBuf[:]...)
	var originLenBuf [2]byte
	binary.BigEndian.PutUint16(originLenBuf[:], uint16(len(origin)))
	out = append(out, originLenBuf[:]...)
	out = append(out, origin...)
	var bodyLenBuf [2]byte
	binary.BigEndian.PutUint16(bodyLenBuf[:], uint16(len(body)))
	out = append(out, bodyLenBuf[:]...)
	out = append(out, body...)
	return out, nil
}

// DecodeFrame parses a wire frame produced by EncodeFrame back into a
// Message. The frame's tick field is restored onto FirstSentTick and
// then overwritten by the envelope's first_sent_tick field; EncodeFrame
// writes the message's FirstSentTick into both, so the two agree.
func DecodeFrame(data []byte) (types.Message, error) {
	var m types.Message
	if len(data) < 1+4+8+2 {
		return m, fmt.Errorf("codec: truncated frame header")
	}
	tag := data[0]
	compressed := tag&compressedTypeBit != 0
	m.Type = types.MessageType(tag &^ compressedTypeBit)

	m.Sequence = uint64(binary.BigEndian.Uint32(data[1:5]))
	m.FirstSentTick = types.Tick(binary.BigEndian.Uint64(data[5:13]))

	rest := data[13:]
	if len(rest) < 2 {
		return m, fmt.Errorf("codec: truncated origin length")
	}
	originLen := binary.BigEndian.Uint16(rest[:2])
	rest = rest[2:]
	if len(rest) < int(originLen) {
		return m, fmt.Errorf("codec: truncated origin")
	}
	m.Origin = types.PeerID(rest[:originLen])
	rest = rest[originLen:]

	if len(rest) < 2 {
		return m, fmt.Errorf("codec: truncated body length")
	}
	bodyLen := binary.BigEndian.Uint16(rest[:2])
	rest = rest[2:]
	if len(rest) < int(bodyLen) {
		return m, fmt.Errorf("codec: truncated body")
	}
	body := rest[:bodyLen]

	if compressed {
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return m, fmt.Errorf("codec: snappy decode: %w", err)
		}
		body = decoded
	}

	payload, _, err := DecodePayload(body)
	if err != nil {
		return m, fmt.Errorf("codec: decode envelope: %w", err)
	}
	if err := fromEnvelope(payload, &m); err != nil {
		return m, err
	}
	return m, nil
}
