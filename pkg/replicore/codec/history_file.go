package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// historyMagic identifies a persisted replicore history file.
var historyMagic = [4]byte{'R', 'C', 'O', 'R'}

const historyFileVersion uint32 = 1

// WriteHistoryHeader writes the spec.md §6 16-byte header: 4-byte
// magic, 4-byte format version, 4-byte tick rate (Hz), 4 bytes
// reserved.
func WriteHistoryHeader(w io.Writer, tickRateHz uint32) error {
	var header [16]byte
	copy(header[0:4], historyMagic[:])
	binary.BigEndian.PutUint32(header[4:8], historyFileVersion)
	binary.BigEndian.PutUint32(header[8:12], tickRateHz)
	_, err := w.Write(header[:])
	return err
}

// ReadHistoryHeader reads and validates the 16-byte header, returning
// the tick rate it records.
func ReadHistoryHeader(r io.Reader) (tickRateHz uint32, err error) {
	var header [16]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, fmt.Errorf("codec: read history header: %w", err)
	}
	if header[0] != historyMagic[0] || header[1] != historyMagic[1] ||
		header[2] != historyMagic[2] || header[3] != historyMagic[3] {
		return 0, fmt.Errorf("codec: bad history file magic")
	}
	version := binary.BigEndian.Uint32(header[4:8])
	if version != historyFileVersion {
		return 0, fmt.Errorf("codec: unsupported history file version %d", version)
	}
	return binary.BigEndian.Uint32(header[8:12]), nil
}

// WriteHistoryFrame appends one end-of-tick frame: an 8-byte tick
// number, a 4-byte entity count, and for each entity (in id order) a
// 2-byte id length, the id bytes, a 4-byte payload length, and the
// canonically-encoded payload.
func WriteHistoryFrame(w io.Writer, frame types.HistoryFrame) error {
	var tickBuf [8]byte
	binary.BigEndian.PutUint64(tickBuf[:], uint64(frame.Tick))
	if _, err := w.Write(tickBuf[:]); err != nil {
		return err
	}

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(frame.Entities)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}

	ids := make([]string, 0, len(frame.Entities))
	for id := range frame.Entities {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	for _, id := range ids {
		idBytes := []byte(id)
		var idLenBuf [2]byte
		binary.BigEndian.PutUint16(idLenBuf[:], uint16(len(idBytes)))
		if _, err := w.Write(idLenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(idBytes); err != nil {
			return err
		}
		encoded, err := EncodePayload(nil, frame.Entities[types.EntityID(id)])
		if err != nil {
			return err
		}
		var payloadLenBuf [4]byte
		binary.BigEndian.PutUint32(payloadLenBuf[:], uint32(len(encoded)))
		if _, err := w.Write(payloadLenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(encoded); err != nil {
			return err
		}
	}
	return nil
}

// ReadHistoryFrame reads one frame written by WriteHistoryFrame. It
// returns io.EOF when the stream is exhausted.
func ReadHistoryFrame(r io.Reader) (types.HistoryFrame, error) {
	var frame types.HistoryFrame
	var tickBuf [8]byte
	if _, err := io.ReadFull(r, tickBuf[:]); err != nil {
		return frame, err
	}
	frame.Tick = types.Tick(binary.BigEndian.Uint64(tickBuf[:]))

	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return frame, fmt.Errorf("codec: read entity count: %w", err)
	}
	count := binary.BigEndian.Uint32(countBuf[:])
	frame.Entities = make(map[types.EntityID]types.Payload, count)

	for i := uint32(0); i < count; i++ {
		var idLenBuf [2]byte
		if _, err := io.ReadFull(r, idLenBuf[:]); err != nil {
			return frame, fmt.Errorf("codec: read entity id length: %w", err)
		}
		idLen := binary.BigEndian.Uint16(idLenBuf[:])
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return frame, fmt.Errorf("codec: read entity id: %w", err)
		}

		var payloadLenBuf [4]byte
		if _, err := io.ReadFull(r, payloadLenBuf[:]); err != nil {
			return frame, fmt.Errorf("codec: read payload length: %w", err)
		}
		payloadLen := binary.BigEndian.Uint32(payloadLenBuf[:])
		encoded := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, encoded); err != nil {
			return frame, fmt.Errorf("codec: read payload: %w", err)
		}
		payload, _, err := DecodePayload(encoded)
		if err != nil {
			return frame, err
		}
		frame.Entities[types.EntityID(idBytes)] = payload
	}
	return frame, nil
}
