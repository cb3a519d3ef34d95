package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Constants for the journal binary protocol.
const (
	// MagicByte is the marker used to identify the start of a valid frame.
	// It helps in scanning for recovery if the file is heavily corrupted.
	MagicByte = 0xA5

	// HeaderSize is the fixed size of the frame metadata:
	// 1 byte (Magic) + 1 byte (OpCode) + 4 bytes (Length) + 4 bytes (CRC32) = 10 bytes.
	HeaderSize = 10

	// MaxPayloadSize bounds the declared payload length. Records are small
	// JSON objects, so anything larger means the length field is corrupt.
	MaxPayloadSize = 1 << 20
)

// OpCode identifies which graph mutation a frame records.
type OpCode byte

const (
	OpRegister   OpCode = 0x01
	OpConnect    OpCode = 0x02
	OpDisconnect OpCode = 0x03
)

func (op OpCode) String() string {
	switch op {
	case OpRegister:
		return "register"
	case OpConnect:
		return "connect"
	case OpDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidMagic indicates the stream lost synchronization or is not a journal.
	ErrInvalidMagic = errors.New("invalid magic byte")
	// ErrChecksumMismatch indicates data corruption within the frame payload.
	ErrChecksumMismatch = errors.New("crc32 checksum mismatch")
	// ErrIncompleteFrame indicates the file ended abruptly (e.g., power loss during write).
	ErrIncompleteFrame = errors.New("incomplete frame")
	// ErrInvalidFrame indicates a header whose declared length cannot belong to a journal record.
	ErrInvalidFrame = errors.New("invalid frame length")
	// ErrUnknownOpCode indicates a well-formed frame carrying an op this version cannot apply.
	ErrUnknownOpCode = errors.New("unknown op code")
)

// Frame is one decoded journal entry.
type Frame struct {
	Op      OpCode
	Payload []byte
}

// FrameWriter handles the safe writing of binary frames to an io.Writer.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter creates a writer that wraps an underlying io.Writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame encodes the payload into a binary frame and writes it.
// Frame Format: [Magic(1)][OpCode(1)][Length(4)][CRC(4)][Payload(N)]
func (fw *FrameWriter) WriteFrame(op OpCode, payload []byte) error {
	header := make([]byte, HeaderSize)
	header[0] = MagicByte
	header[1] = byte(op)
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[6:10], crc32.ChecksumIEEE(payload))

	// Header and payload go out as two writes; callers pass a buffer so the
	// frame reaches the file in one piece.
	if _, err := fw.w.Write(header); err != nil {
		return err
	}
	if _, err := fw.w.Write(payload); err != nil {
		return err
	}
	return nil
}

// ReadFrame reads the next frame from the reader, validating the magic byte
// and the CRC32 checksum. It returns the frame, the number of bytes consumed
// and an error. A clean end of stream is reported as io.EOF.
//
// ErrIncompleteFrame is only returned when the stream ends inside a frame
// whose header is plausible; a length above MaxPayloadSize is ErrInvalidFrame
// and nothing is allocated for it.
func ReadFrame(r io.Reader) (Frame, int, error) {
	header := make([]byte, HeaderSize)

	if _, err := io.ReadFull(r, header); err != nil {
		// EOF exactly at the start of a frame is a clean exit.
		if err == io.EOF {
			return Frame{}, 0, io.EOF
		}
		return Frame{}, 0, ErrIncompleteFrame
	}

	if header[0] != MagicByte {
		return Frame{}, HeaderSize, ErrInvalidMagic
	}

	length := binary.LittleEndian.Uint32(header[2:6])
	expectedCRC := binary.LittleEndian.Uint32(header[6:10])
	if length > MaxPayloadSize {
		return Frame{}, HeaderSize, fmt.Errorf("%w: %d bytes", ErrInvalidFrame, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		// Even a plain EOF is an error here: we expected 'length' bytes.
		return Frame{}, HeaderSize, ErrIncompleteFrame
	}

	if crc32.ChecksumIEEE(payload) != expectedCRC {
		return Frame{}, HeaderSize + int(length), ErrChecksumMismatch
	}

	return Frame{Op: OpCode(header[1]), Payload: payload}, HeaderSize + int(length), nil
}
