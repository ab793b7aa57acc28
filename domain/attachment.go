package domain

import (
	"path"
	"strings"

	"github.com/goware/urlx"
	"github.com/h2non/filetype"
)

// MediaType is the coarse kind of an attachment.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaImage
	MediaVideo
	MediaAudio
	MediaText
)

func (t MediaType) String() string {
	switch t {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	case MediaText:
		return "text"
	}
	return "unknown"
}

func mediaTypeOf(mime string) MediaType {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaImage
	case strings.HasPrefix(mime, "video/"):
		return MediaVideo
	case strings.HasPrefix(mime, "audio/"):
		return MediaAudio
	case strings.HasPrefix(mime, "text/"):
		return MediaText
	}
	return MediaUnknown
}

type Attachment struct {
	URI        string
	MimeType   string
	MediaType  MediaType
	PreviewURI string
}

// NewAttachment builds an attachment; the MIME type is guessed from the url
// extension when mime is empty.
func NewAttachment(uri, mime string) Attachment {
	if mime == "" {
		mime = MimeTypeFromURL(uri)
	}
	return Attachment{URI: uri, MimeType: mime, MediaType: mediaTypeOf(mime)}
}

// MimeTypeFromURL returns "" when the extension is unknown.
func MimeTypeFromURL(uri string) string {
	p := uri
	if u, err := urlx.Parse(uri); err == nil {
		p = u.Path
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if ext == "" {
		return ""
	}
	t := filetype.GetType(ext)
	if t == filetype.Unknown {
		return ""
	}
	return t.MIME.Value
}

func (a Attachment) IsEmpty() bool { return a.URI == "" }

// Attachments keeps insertion order and ignores repeated urls.
type Attachments []Attachment

func (as Attachments) Add(a Attachment) Attachments {
	if a.IsEmpty() {
		return as
	}
	for _, existing := range as {
		if existing.URI == a.URI {
			return as
		}
	}
	return append(as, a)
}

func (as Attachments) IsEmpty() bool { return len(as) == 0 }
