package domain

// MediaKind selects the external tool's argument profile and the container
// extension of the finished file.
type MediaKind string

const (
	KindAudio     MediaKind = "audio"      // standard mp3
	KindAudioBest MediaKind = "audio_best" // best quality m4a
	KindVideoHD   MediaKind = "video_hd"   // mp4 capped at 1080p
	KindVideoBest MediaKind = "video_best" // best available
)

// The option strings the front-end sends.
const (
	OptionAudioStandard = "Audio Standard MP3"
	OptionAudioBest     = "Audio Best Quality"
	OptionVideoHD       = "Video MP4 Full HD"
	OptionVideoBest     = "Video Best Quality"
)

// ParseOption maps the request's option string onto a MediaKind. Unknown
// values fall back to best-quality video.
func ParseOption(option string) MediaKind {
	switch option {
	case OptionAudioStandard:
		return KindAudio
	case OptionAudioBest:
		return KindAudioBest
	case OptionVideoHD:
		return KindVideoHD
	default:
		return KindVideoBest
	}
}

// Ext returns the extension the external tool produces for the kind.
func (k MediaKind) Ext() string {
	switch k {
	case KindAudio:
		return ".mp3"
	case KindAudioBest:
		return ".m4a"
	default:
		return ".mp4"
	}
}

// MimeType returns the content type used when serving a finished file.
func (k MediaKind) MimeType() string {
	switch k {
	case KindAudio:
		return "audio/mpeg"
	case KindAudioBest:
		return "audio/mp4"
	default:
		return "video/mp4"
	}
}
