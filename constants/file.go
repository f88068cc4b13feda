package constants

import (
	"strings"
	"time"
)

// Media types accepted for upload.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
	MediaTypeWebP = "image/webp"
	MediaTypeGIF  = "image/gif"
	MediaTypeHEIC = "image/heic"
	MediaTypeHEIF = "image/heif"
)

// Upload and render limits used when the environment does not override them.
const (
	DefaultMaxPDFBytes   int64 = 50 << 20
	DefaultMaxImageBytes int64 = 20 << 20
	DefaultMaxPages            = 10

	// NominalDPI is a PDF point density; pages are rendered at NominalDPI*scale.
	NominalDPI         = 72
	DefaultRenderScale = 2.0
	MinRenderScale     = 2.0

	// DefaultRenderTimeout bounds rasterising one whole document.
	DefaultRenderTimeout = 2 * time.Minute
)

// AllowedExtensions maps the accepted upload extensions to their media type.
var AllowedExtensions = map[string]string{
	"pdf":  MediaTypePDF,
	"png":  MediaTypePNG,
	"jpg":  MediaTypeJPEG,
	"jpeg": MediaTypeJPEG,
	"webp": MediaTypeWebP,
	"gif":  MediaTypeGIF,
	"heic": MediaTypeHEIC,
	"heif": MediaTypeHEIF,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MediaTypeForExt returns the accepted media type for a file extension.
func MediaTypeForExt(ext string) (string, bool) {
	mt, ok := AllowedExtensions[NormalizeExt(ext)]
	return mt, ok
}

// ExtForMediaType is the inverse of MediaTypeForExt, preferring the short form.
func ExtForMediaType(mediaType string) string {
	switch NormalizeMediaType(mediaType) {
	case MediaTypePDF:
		return "pdf"
	case MediaTypePNG:
		return "png"
	case MediaTypeJPEG:
		return "jpg"
	case MediaTypeWebP:
		return "webp"
	case MediaTypeGIF:
		return "gif"
	case MediaTypeHEIC:
		return "heic"
	case MediaTypeHEIF:
		return "heif"
	}
	return "bin"
}

// NormalizeMediaType drops parameters and lowercases; image/jpg is folded into image/jpeg.
func NormalizeMediaType(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "image/jpg" {
		return MediaTypeJPEG
	}
	return mt
}

func IsPDF(mediaType string) bool {
	return NormalizeMediaType(mediaType) == MediaTypePDF
}

// IsImage reports whether the media type is one of the accepted raster types.
func IsImage(mediaType string) bool {
	switch NormalizeMediaType(mediaType) {
	case MediaTypePNG, MediaTypeJPEG, MediaTypeWebP, MediaTypeGIF, MediaTypeHEIC, MediaTypeHEIF:
		return true
	}
	return false
}

func IsHEIC(mediaType string) bool {
	mt := NormalizeMediaType(mediaType)
	return mt == MediaTypeHEIC || mt == MediaTypeHEIF
}
