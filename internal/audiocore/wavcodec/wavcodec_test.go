package wavcodec

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
)

func TestEncodeLayout(t *testing.T) {
	b, err := Encode(audiocore.DefaultFormat(), 128000)
	require.NoError(t, err)
	require.Len(t, b, HeaderSize)

	assert.Equal(t, "RIFF", string(b[0:4]))
	assert.Equal(t, uint32(36+128000), binary.LittleEndian.Uint32(b[4:8]))
	assert.Equal(t, "WAVE", string(b[8:12]))
	assert.Equal(t, "fmt ", string(b[12:16]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(b[16:20]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(b[20:22]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(b[22:24]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(b[24:28]))
	assert.Equal(t, uint32(64000), binary.LittleEndian.Uint32(b[28:32]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(b[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(b[34:36]))
	assert.Equal(t, "data", string(b[36:40]))
	assert.Equal(t, uint32(128000), binary.LittleEndian.Uint32(b[40:44]))
}

func TestRoundTripIsByteIdentical(t *testing.T) {
	for _, n := range []int64{0, 4, 128000, MaxPayload} {
		b, err := Encode(audiocore.DefaultFormat(), n)
		require.NoError(t, err)

		h, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, uint32(n), h.DataSize)
		assert.True(t, h.Format().Equal(audiocore.DefaultFormat()))

		again, err := h.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, b, again)
	}
}

func TestEncodeRejects(t *testing.T) {
	_, err := Encode(audiocore.DefaultFormat(), -1)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = Encode(audiocore.DefaultFormat(), MaxPayload+1)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = Encode(audiocore.AudioFormat{SampleRate: 16000, Channels: 2, BitDepth: 24}, 10)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	valid, err := Encode(audiocore.DefaultFormat(), 100)
	require.NoError(t, err)

	mutate := func(off int, v []byte) []byte {
		b := bytes.Clone(valid)
		copy(b[off:], v)
		return b
	}

	tests := []struct {
		name string
		in   []byte
	}{
		{"short", valid[:43]},
		{"bad riff", mutate(0, []byte("RIFX"))},
		{"bad wave", mutate(8, []byte("AVI "))},
		{"fmt size", mutate(16, []byte{18, 0, 0, 0})},
		{"not pcm", mutate(20, []byte{3, 0})},
		{"bad byte rate", mutate(28, []byte{1, 0, 0, 0})},
		{"bad block align", mutate(32, []byte{3, 0})},
		{"no data chunk", mutate(36, []byte("LIST"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			assert.ErrorIs(t, err, ErrInvalidHeader)
		})
	}
}

func TestReadHeaderLeavesPayloadUnread(t *testing.T) {
	b, err := Encode(audiocore.DefaultFormat(), 8)
	require.NoError(t, err)
	r := bytes.NewReader(append(b, 1, 2, 3, 4, 5, 6, 7, 8))

	h, err := ReadHeader(r)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), h.DataSize)
	assert.Equal(t, 8, r.Len())

	_, err = ReadHeader(bytes.NewReader(b[:20]))
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestHeaderDuration(t *testing.T) {
	h := HeaderFor(audiocore.DefaultFormat(), 320000)
	assert.Equal(t, 5*time.Second, h.Duration())
	assert.Equal(t, int64(192000), PayloadLength(audiocore.DefaultFormat(), 3*time.Second))
	assert.Equal(t, 2*time.Second, PayloadDuration(audiocore.DefaultFormat(), 128000))
}

type memWriterAt struct{ buf []byte }

func (m *memWriterAt) WriteAt(p []byte, off int64) (int, error) {
	copy(m.buf[off:], p)
	return len(p), nil
}

func TestPatchSizes(t *testing.T) {
	b, err := Encode(audiocore.DefaultFormat(), 0)
	require.NoError(t, err)
	m := &memWriterAt{buf: b}

	require.NoError(t, PatchSizes(m, 64000))

	h, err := Decode(m.buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(64000), h.DataSize)
	assert.Equal(t, uint32(36+64000), binary.LittleEndian.Uint32(m.buf[4:8]))

	assert.ErrorIs(t, PatchSizes(m, -4), ErrPayloadTooLarge)
}

// writeWAV writes a canonical file with the given payload
func writeWAV(t *testing.T, path string, payload []byte) {
	t.Helper()
	hdr, err := Encode(audiocore.DefaultFormat(), int64(len(payload)))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(hdr, payload...), 0o600))
}

func TestOpenPayloadCanonical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	payload := bytes.Repeat([]byte{1, 2, 3, 4}, 1000)
	writeWAV(t, path, payload)

	p, err := OpenPayload(path)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, int64(HeaderSize), p.Offset)
	assert.Equal(t, int64(len(payload)), p.Length())
	assert.True(t, p.Format().Equal(audiocore.DefaultFormat()))

	got, err := io.ReadAll(p)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestOpenPayloadSkipsExtraChunks(t *testing.T) {
	payload := bytes.Repeat([]byte{9, 8, 7, 6}, 16)
	canonical, err := Encode(audiocore.DefaultFormat(), int64(len(payload)))
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.Write(canonical[:36]) // RIFF, WAVE and fmt
	buf.WriteString("JUNK")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(4)))
	buf.Write([]byte{0, 0, 0, 0})
	buf.Write(canonical[36:]) // data header
	buf.Write(payload)
	b := buf.Bytes()
	binary.LittleEndian.PutUint32(b[4:8], uint32(len(b)-8))

	path := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(path, b, 0o600))

	p, err := OpenPayload(path)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, int64(HeaderSize+12), p.Offset)
	got, err := io.ReadAll(p)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestOpenPayloadFromEncoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enc.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 16000, 16, 2, 1)
	samples := []int{1, -1, 2, -2, 3, -3, 4, -4}
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{SampleRate: 16000, NumChannels: 2},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	p, err := OpenPayload(path)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, int64(len(samples)*2), p.Length())
	got, err := io.ReadAll(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0xff, 0xff}, got[:4])
}

func TestOpenPayloadFailures(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenPayload(filepath.Join(dir, "missing.wav"))
	assert.ErrorIs(t, err, audiocore.ErrSegmentReadFailed)

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a wav file at all, no sir"), 0o600))
	_, err = OpenPayload(garbage)
	assert.ErrorIs(t, err, audiocore.ErrSegmentReadFailed)

	truncated := filepath.Join(dir, "truncated.wav")
	hdr, err := Encode(audiocore.DefaultFormat(), 1000)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(truncated, append(hdr, make([]byte, 10)...), 0o600))
	_, err = OpenPayload(truncated)
	assert.ErrorIs(t, err, audiocore.ErrSegmentReadFailed)
}
