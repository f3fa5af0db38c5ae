package media

import (
	"errors"
	"path"
	"strings"

	"golang.org/x/net/html"
)

var (
	ErrInvalidAttachment     = errors.New("attachment must be an uploaded file under /uploads/ or /media/")
	ErrUnsupportedAttachment = errors.New("unsupported attachment type")
)

var (
	imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true}
	videoExts = map[string]bool{".mp4": true, ".webm": true, ".mov": true, ".ogv": true}
	audioExts = map[string]bool{".mp3": true, ".ogg": true, ".wav": true, ".m4a": true}
)

// SupportedExtension reports whether files with ext can be embedded in a fragment.
func SupportedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	return imageExts[ext] || videoExts[ext] || audioExts[ext]
}

// Render builds the stored HTML fragment for a post, comment or message:
// the escaped text in a paragraph followed by one media element per attachment.
// Every attachment must resolve inside the scanner's roots, so whatever Render
// emits can later be found again by Extract.
func (s *Scanner) Render(text string, attachments []string) (string, error) {
	var b strings.Builder
	if text = strings.TrimSpace(text); text != "" {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(text))
		b.WriteString("</p>")
	}

	for _, a := range attachments {
		a = strings.TrimSpace(a)
		if strings.ContainsAny(a, "\"'<>?# ") {
			return "", ErrInvalidAttachment
		}
		if _, ok := s.Resolve(a); !ok {
			return "", ErrInvalidAttachment
		}
		src := html.EscapeString(a)
		ext := strings.ToLower(path.Ext(a))
		switch {
		case imageExts[ext]:
			b.WriteString(`<img src="` + src + `">`)
		case videoExts[ext]:
			b.WriteString(`<video src="` + src + `" controls></video>`)
		case audioExts[ext]:
			b.WriteString(`<audio src="` + src + `" controls></audio>`)
		default:
			return "", ErrUnsupportedAttachment
		}
	}
	return b.String(), nil
}
