// Package chunked implements RFC 7230 §4.1 "Transfer-Encoding: chunked"
// decoding and encoding as described in spec §4.C: a byte-by-byte state
// machine decoder bounded to one caller-buffer's worth of data per Read,
// and a buffering encoder that frames writes into chunks.
package chunked

import (
	"fmt"
	"io"

	"github.com/yourusername/embedhttp/internal/charclass"
)

// Phase names the decoder's state, mirrored on both the chunk-size line and
// the chunk-data trailer so each half of a chunk goes through the same
// CR/LF confirmation shape.
type Phase int

const (
	ChunkSize Phase = iota
	ChunkSizeCR
	ChunkSizeLF
	Chunk
	ChunkCR
	ChunkLF
	Complete
)

func (p Phase) String() string {
	switch p {
	case ChunkSize:
		return "ChunkSize"
	case ChunkSizeCR:
		return "ChunkSizeCR"
	case ChunkSizeLF:
		return "ChunkSizeLF"
	case Chunk:
		return "Chunk"
	case ChunkCR:
		return "ChunkCR"
	case ChunkLF:
		return "ChunkLF"
	case Complete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// ParseError reports the offending byte and the phase the decoder was in
// when a chunk-framing byte failed to match its expected class.
type ParseError struct {
	Byte  byte
	Phase Phase
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("chunked: unexpected byte %q in phase %s", e.Byte, e.Phase)
}

// Reader decodes a chunked body, delivering decoded application bytes into
// the caller's buffer. It never blocks waiting for the next chunk: Read
// returns as soon as it has produced at least one byte, or hit EOF, from
// the current chunk.
type Reader struct {
	r io.Reader

	phase     Phase
	size      uint64 // accumulated/decoded size of the current chunk
	remaining uint64 // bytes of chunk-data left to deliver
	inExt     bool   // inside a chunk-extension, skipping to CR
	inTrailer bool   // consuming (and discarding) trailer field-lines

	one [1]byte // scratch for single-byte framing reads
}

// NewReader wraps r, decoding chunked framing as bytes are requested.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Reset rebinds the reader to r and restarts the state machine, for
// per-connection reuse across keep-alive requests.
func (d *Reader) Reset(r io.Reader) {
	d.r = r
	d.phase = ChunkSize
	d.size = 0
	d.remaining = 0
	d.inExt = false
	d.inTrailer = false
}

// Read implements io.Reader. Once the terminating zero-size chunk and its
// trailer have been consumed, Read returns io.EOF.
func (d *Reader) Read(p []byte) (int, error) {
	if d.phase == Complete {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	for {
		switch d.phase {
		case Chunk:
			if d.remaining == 0 {
				d.phase = ChunkCR
				continue
			}
			n := uint64(len(p))
			if n > d.remaining {
				n = d.remaining
			}
			read, err := d.r.Read(p[:n])
			d.remaining -= uint64(read)
			if read > 0 {
				return read, nil
			}
			if err != nil {
				return 0, err
			}
			// read == 0, err == nil: try again.
			continue
		default:
			if err := d.consumeFraming(); err != nil {
				return 0, err
			}
			if d.phase == Chunk && d.remaining > 0 {
				continue
			}
			if d.phase == Complete {
				return 0, io.EOF
			}
		}
	}
}

// consumeFraming advances the state machine through everything that is not
// raw chunk data: the size line, CR/LF pairs, extensions, and the trailer.
func (d *Reader) consumeFraming() error {
	for d.phase != Chunk && d.phase != Complete {
		b, err := d.readByte()
		if err != nil {
			return err
		}

		switch d.phase {
		case ChunkSize:
			switch {
			case d.inExt:
				if b == '\r' {
					d.inExt = false
					d.phase = ChunkSizeCR
				}
				// else: discard extension byte.
			case charclass.IsHexDigit(b):
				d.size = d.size<<4 | uint64(charclass.HexValue(b))
				if d.size > charclass.MaxChunkSize {
					return &ParseError{Byte: b, Phase: ChunkSize}
				}
			case b == ';':
				d.inExt = true
			case b == '\r':
				d.phase = ChunkSizeCR
			default:
				return &ParseError{Byte: b, Phase: ChunkSize}
			}
		case ChunkSizeCR:
			if b != '\n' {
				return &ParseError{Byte: b, Phase: ChunkSizeCR}
			}
			d.phase = ChunkSizeLF
			if d.size == 0 {
				d.inTrailer = true
				d.phase = ChunkSize // reused to scan trailer lines below
				return d.consumeTrailer()
			}
			d.remaining = d.size
			d.size = 0
			d.phase = Chunk
		case ChunkCR:
			if b != '\r' {
				return &ParseError{Byte: b, Phase: ChunkCR}
			}
			d.phase = ChunkLF
		case ChunkLF:
			if b != '\n' {
				return &ParseError{Byte: b, Phase: ChunkLF}
			}
			d.phase = ChunkSize
		}
	}
	return nil
}

// consumeTrailer discards trailer field-lines (if any) up through the
// terminating blank CRLF, per spec's tolerant-but-ignored trailer handling.
func (d *Reader) consumeTrailer() error {
	prevCR := false
	lineStart := true
	for {
		b, err := d.readByte()
		if err != nil {
			return err
		}
		if lineStart && b == '\r' {
			// Blank line: read the matching LF and finish.
			b2, err := d.readByte()
			if err != nil {
				return err
			}
			if b2 != '\n' {
				return &ParseError{Byte: b2, Phase: ChunkLF}
			}
			d.phase = Complete
			d.inTrailer = false
			return nil
		}
		if b == '\n' && prevCR {
			lineStart = true
			prevCR = false
			continue
		}
		prevCR = b == '\r'
		lineStart = false
	}
}

func (d *Reader) readByte() (byte, error) {
	n, err := d.r.Read(d.one[:])
	if n == 1 {
		return d.one[0], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return 0, err
}
