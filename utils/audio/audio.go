// Package audio converts synthesized speech into something a local player
// can open.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/zaf/g711"

	"handspeak/core"
)

var wavHeaderPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 64))
	},
}

// PCMBytesToULaw converts PCM bytes to µ-law
func PCMBytesToULaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM byte slice length must be even (16-bit samples)")
	}
	return g711.EncodeUlaw(pcm), nil
}

// ULawBytesToPCM converts µ-law bytes to PCM bytes
func ULawBytesToPCM(uBytes []byte) []byte {
	return g711.DecodeUlaw(uBytes)
}

// ALawBytesToPCM converts A-law bytes to PCM bytes
func ALawBytesToPCM(aBytes []byte) []byte {
	return g711.DecodeAlaw(aBytes)
}

// ValidatePCMData validates PCM byte array for basic integrity
func ValidatePCMData(pcm []byte, numChannels int) error {
	if len(pcm) == 0 {
		return errors.New("PCM data is empty")
	}
	if numChannels <= 0 || numChannels > 2 {
		return errors.New("only mono (1) or stereo (2) channels supported")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return errors.New("PCM data length doesn't match channel count")
	}
	return nil
}

// PCMBytesToWavBytes wraps 16-bit little endian PCM in a WAV container.
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if err := ValidatePCMData(pcm, numChannels); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}

	buf := wavHeaderPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		wavHeaderPool.Put(buf)
	}()

	const (
		bitsPerSample  = 16
		audioFormatPCM = 1
		subchunk1Size  = 16
	)
	blockAlign := numChannels * bitsPerSample / 8

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(subchunk1Size))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))

	result := make([]byte, buf.Len()+len(pcm))
	copy(result, buf.Bytes())
	copy(result[buf.Len():], pcm)
	return result, nil
}

// StripWAVHeaderIfPresent returns the data chunk of a RIFF/WAVE payload, or
// the input unchanged when it is not WAV.
func StripWAVHeaderIfPresent(chunk []byte) ([]byte, error) {
	if len(chunk) < 12 {
		return chunk, nil
	}
	if !bytes.HasPrefix(chunk, []byte("RIFF")) || !bytes.Equal(chunk[8:12], []byte("WAVE")) {
		return chunk, nil
	}

	i := 12
	for i+8 <= len(chunk) {
		chunkID := string(chunk[i : i+4])
		chunkSize := binary.LittleEndian.Uint32(chunk[i+4 : i+8])
		next := i + 8 + int(chunkSize)

		if chunkID == "data" {
			if next > len(chunk) {
				return nil, errors.New("invalid WAV: data chunk exceeds buffer length")
			}
			return chunk[i+8 : next], nil
		}
		if chunkSize%2 != 0 {
			next++
		}
		if next > len(chunk) {
			break
		}
		i = next
	}
	return nil, errors.New("invalid WAV: data chunk not found")
}

// Playable returns a self-describing file body for chunk and its extension.
// Raw sample formats are decoded and wrapped as WAV; MP3 passes through.
func Playable(chunk core.AudioChunk) ([]byte, string, error) {
	channels := chunk.Channels
	if channels == 0 {
		channels = 1
	}
	switch chunk.Format {
	case core.MP3:
		if len(chunk.Data) == 0 {
			return nil, "", errors.New("empty mp3 payload")
		}
		return chunk.Data, ".mp3", nil
	case core.PCM:
		pcm, err := StripWAVHeaderIfPresent(chunk.Data)
		if err != nil {
			return nil, "", err
		}
		wav, err := PCMBytesToWavBytes(pcm, channels, chunk.SampleRate)
		return wav, ".wav", err
	case core.ULAW:
		wav, err := PCMBytesToWavBytes(ULawBytesToPCM(chunk.Data), channels, chunk.SampleRate)
		return wav, ".wav", err
	case core.ALAW:
		wav, err := PCMBytesToWavBytes(ALawBytesToPCM(chunk.Data), channels, chunk.SampleRate)
		return wav, ".wav", err
	default:
		return nil, "", fmt.Errorf("unsupported audio format %s", chunk.Format)
	}
}
