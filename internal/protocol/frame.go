package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// MetadataLengthSize is the size of the little-endian metadata length prefix.
const MetadataLengthSize = 4

var ErrMalformedFrame = errors.New("malformed audio frame")

// AudioMetadata is the JSON block that precedes the PCM payload.
type AudioMetadata struct {
	SampleRate uint32 `json:"sampleRate"`
}

// AudioChunk is a decoded outbound audio message.
type AudioChunk struct {
	SampleRate uint32
	PCM        []int16
}

// EncodeAudioChunk serializes PCM samples at sampleRate into one binary message.
func EncodeAudioChunk(sampleRate uint32, pcm []int16) ([]byte, error) {
	if sampleRate == 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}

	meta, err := json.Marshal(AudioMetadata{SampleRate: sampleRate})
	if err != nil {
		return nil, fmt.Errorf("failed to encode audio metadata: %w", err)
	}

	buf := make([]byte, MetadataLengthSize+len(meta)+2*len(pcm))
	binary.LittleEndian.PutUint32(buf[0:MetadataLengthSize], uint32(len(meta)))
	copy(buf[MetadataLengthSize:], meta)

	offset := MetadataLengthSize + len(meta)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[offset+2*i:], uint16(s))
	}
	return buf, nil
}

// DecodeAudioChunk parses a binary message produced by EncodeAudioChunk.
func DecodeAudioChunk(data []byte) (AudioChunk, error) {
	if len(data) < MetadataLengthSize {
		return AudioChunk{}, fmt.Errorf("%w: header too short: expected %d bytes, got %d", ErrMalformedFrame, MetadataLengthSize, len(data))
	}

	metaLen := binary.LittleEndian.Uint32(data[0:MetadataLengthSize])
	if uint64(metaLen) > uint64(len(data)-MetadataLengthSize) {
		return AudioChunk{}, fmt.Errorf("%w: metadata length %d exceeds message size %d", ErrMalformedFrame, metaLen, len(data))
	}

	end := MetadataLengthSize + int(metaLen)
	var meta AudioMetadata
	if err := json.Unmarshal(data[MetadataLengthSize:end], &meta); err != nil {
		return AudioChunk{}, fmt.Errorf("%w: invalid metadata: %v", ErrMalformedFrame, err)
	}
	if meta.SampleRate == 0 {
		return AudioChunk{}, fmt.Errorf("%w: metadata sample rate must be positive", ErrMalformedFrame)
	}

	payload := data[end:]
	if len(payload)%2 != 0 {
		return AudioChunk{}, fmt.Errorf("%w: odd payload length %d", ErrMalformedFrame, len(payload))
	}

	pcm := make([]int16, len(payload)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(payload[2*i:]))
	}
	return AudioChunk{SampleRate: meta.SampleRate, PCM: pcm}, nil
}
