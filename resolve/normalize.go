package resolve

import (
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

var photoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".heic": true,
}

// itemKind prefers what the provider states and falls back to the file
// extension. Anything unrecognized is treated as video.
func itemKind(explicit, mediaURL string) ItemKind {
	switch explicit {
	case "photo":
		return ItemPhoto
	case "video", "gif":
		return ItemVideo
	}
	if photoExts[urlExt(mediaURL)] {
		return ItemPhoto
	}
	return ItemVideo
}

// synthFilename builds a filename when the provider returns none: a short
// random id plus an extension picked by mode, then by the media URL.
func synthFilename(mediaURL string, mode Mode) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if mode == ModeAudio {
		return id + ".mp3"
	}
	ext := urlExt(mediaURL)
	if ext == "" {
		ext = ".mp4"
	}
	return id + ext
}

func urlExt(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}
