// Package audio holds the recorded and synthesized audio payloads exchanged by the pipeline.
package audio

import "strings"

const (
	ContentTypeWAV  = "audio/wav"
	ContentTypeMP3  = "audio/mpeg"
	ContentTypePCM  = "audio/pcm"
	ContentTypeWebM = "audio/webm"
)

// Blob is an opaque audio payload with its media type.
type Blob struct {
	Data        []byte
	ContentType string
}

func (b Blob) Empty() bool { return len(b.Data) == 0 }

func (b Blob) Len() int { return len(b.Data) }

// FileName picks an upload file name whose extension matches the content type.
// Transcription services sniff the format from it.
func (b Blob) FileName() string {
	ct := strings.ToLower(b.ContentType)
	switch {
	case strings.Contains(ct, "wav"):
		return "audio.wav"
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return "audio.mp3"
	case strings.Contains(ct, "ogg"):
		return "audio.ogg"
	case strings.Contains(ct, "mp4"), strings.Contains(ct, "m4a"):
		return "audio.m4a"
	default:
		return "audio.webm"
	}
}
