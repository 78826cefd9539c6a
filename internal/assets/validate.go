package assets

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind is the role an uploaded file plays in a composition.
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindLogo     Kind = "logo"
	KindDocument Kind = "document"
)

const mb = 1024 * 1024

// MaxSizes are the upload limits in bytes per kind.
var MaxSizes = map[Kind]int64{
	KindImage:    10 * mb,
	KindVideo:    100 * mb,
	KindAudio:    20 * mb,
	KindLogo:     2 * mb,
	KindDocument: 50 * mb,
}

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// Extensions are the accepted file extensions per kind.
var Extensions = map[Kind][]string{
	KindImage:    imageExts,
	KindLogo:     imageExts,
	KindVideo:    {".mp4", ".webm", ".mov"},
	KindAudio:    {".mp3", ".wav", ".ogg", ".m4a", ".aac"},
	KindDocument: {".pdf"},
}

var ErrInvalidAsset = errors.New("invalid asset")

// Validate checks a file's size and extension against the limits for kind.
// Every violation is reported.
func Validate(name string, size int64, kind Kind) error {
	maxSize, ok := MaxSizes[kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAsset, kind)
	}

	var problems []string
	if size > maxSize {
		problems = append(problems, fmt.Sprintf("file size (%.2fMB) exceeds maximum allowed size (%.2fMB)",
			float64(size)/mb, float64(maxSize)/mb))
	}

	ext := strings.ToLower(filepath.Ext(name))
	allowed := Extensions[kind]
	found := false
	for _, e := range allowed {
		if e == ext {
			found = true
			break
		}
	}
	if !found {
		problems = append(problems, fmt.Sprintf("file type %s is not supported, allowed types: %s", ext, strings.Join(allowed, ", ")))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrInvalidAsset, name, strings.Join(problems, "; "))
	}
	return nil
}

// KindOf guesses the kind from the file extension; logos cannot be told
// apart from images and come back as KindImage.
func KindOf(name string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	for _, k := range []Kind{KindImage, KindVideo, KindAudio, KindDocument} {
		for _, e := range Extensions[k] {
			if e == ext {
				return k, true
			}
		}
	}
	return "", false
}
