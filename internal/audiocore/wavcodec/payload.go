package wavcodec

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
)

const componentWAVCodec = "wavcodec"

// Payload is an open WAV file positioned at the first PCM byte. Reads stop
// at the end of the data chunk.
type Payload struct {
	Path   string
	Header Header // DataSize is the data chunk length
	Offset int64  // file offset of the first PCM byte
	Size   int64  // total file size

	file   *os.File
	reader io.Reader
}

// Format returns the payload's sample format
func (p *Payload) Format() audiocore.AudioFormat {
	return p.Header.Format()
}

// Length returns the payload length in bytes
func (p *Payload) Length() int64 {
	return int64(p.Header.DataSize)
}

func (p *Payload) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}

// Close releases the underlying file
func (p *Payload) Close() error {
	return p.file.Close()
}

// OpenPayload opens a PCM WAV file, which may carry chunks other than fmt
// and data, and positions it at the PCM payload. The payload must lie
// entirely inside the file.
func OpenPayload(path string) (*Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, readError(path, "open", err)
	}

	p, err := openPayload(f)
	if err != nil {
		_ = f.Close()
		return nil, readError(path, "decode", err)
	}
	p.Path = path
	return p, nil
}

func openPayload(f *os.File) (*Payload, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrInvalidHeader)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	h := Header{
		AudioFormat:   d.WavAudioFormat,
		NumChannels:   d.NumChans,
		SampleRate:    d.SampleRate,
		ByteRate:      d.AvgBytesPerSec,
		BlockAlign:    d.NumChans * (d.BitDepth / 8),
		BitsPerSample: d.BitDepth,
		DataSize:      uint32(d.PCMLen()),
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}

	// The decoder reads through its own chunk parser, so locate the data
	// chunk offset independently before handing out a reader.
	offset, size, err := locateData(f)
	if err != nil {
		return nil, err
	}
	if size != int64(h.DataSize) {
		return nil, fmt.Errorf("%w: data chunk declares %d bytes, decoder saw %d", ErrInvalidHeader, size, h.DataSize)
	}
	if offset+size > info.Size() {
		return nil, fmt.Errorf("payload truncated: %d bytes declared, %d present", size, info.Size()-offset)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	return &Payload{
		Header: h,
		Offset: offset,
		Size:   info.Size(),
		file:   f,
		reader: io.LimitReader(f, size),
	}, nil
}

// locateData walks the RIFF chunk list and returns the offset and length of
// the data chunk payload.
func locateData(r io.ReadSeeker) (offset, size int64, err error) {
	if _, err := r.Seek(12, io.SeekStart); err != nil {
		return 0, 0, err
	}

	pos := int64(12)
	var hdr [8]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return 0, 0, fmt.Errorf("%w: no data chunk: %w", ErrInvalidHeader, err)
		}
		chunkSize := int64(binary.LittleEndian.Uint32(hdr[4:]))
		pos += 8
		if [4]byte(hdr[:4]) == dataID {
			return pos, chunkSize, nil
		}
		// chunks are word aligned
		skip := chunkSize + chunkSize&1
		if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
			return 0, 0, err
		}
		pos += skip
	}
}

func readError(path, operation string, err error) error {
	return audiocore.NewError(audiocore.ErrSegmentReadFailed,
		fmt.Errorf("%s %s: %w", operation, path, err),
		componentWAVCodec, "open_payload")
}
