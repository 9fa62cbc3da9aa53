package core

import "time"

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // 16-bit little-endian pulse-code modulation.
	ULAW                            // μ-law encoding format.
	ALAW                            // A-law encoding format.
	MP3                             // MPEG layer 3, as returned by most TTS APIs.
)

func (f AudioEncodingFormat) String() string {
	switch f {
	case PCM:
		return "pcm"
	case ULAW:
		return "ulaw"
	case ALAW:
		return "alaw"
	case MP3:
		return "mp3"
	default:
		return "unknown"
	}
}

type AudioChunk struct {
	Data       []byte              // Encoded audio bytes.
	SampleRate int                 // Sample rate of the audio data.
	Channels   int                 // Number of audio channels.
	Format     AudioEncodingFormat // Encoding format of the audio data.
	Timestamp  time.Time           // When the chunk was produced.
}

// GetDurationInSeconds is only meaningful for sample-addressable formats.
// Compressed formats report zero.
func (ac *AudioChunk) GetDurationInSeconds() float64 {
	if ac.SampleRate == 0 || ac.Channels == 0 {
		return 0.0
	}
	var bytesPerSample int
	switch ac.Format {
	case PCM:
		bytesPerSample = 2
	case ULAW, ALAW:
		bytesPerSample = 1
	default:
		return 0.0
	}
	totalSamples := len(ac.Data) / (bytesPerSample * ac.Channels)
	return float64(totalSamples) / float64(ac.SampleRate)
}

// ParseAudioEncoding maps a config string to a format. Empty and unknown
// values yield MP3.
func ParseAudioEncoding(s string) AudioEncodingFormat {
	switch s {
	case "pcm":
		return PCM
	case "ulaw":
		return ULAW
	case "alaw":
		return ALAW
	default:
		return MP3
	}
}
