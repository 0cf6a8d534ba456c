package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

const (
	// MaxImageBytes is the largest image accepted for analysis.
	MaxImageBytes = 14 * 1024 * 1024
	// DefaultImageMIME is used when the file extension says nothing useful.
	DefaultImageMIME = "image/png"
)

var (
	ErrImageTooLarge    = errors.New("image is too large")
	ErrEmptyImage       = errors.New("image is empty")
	ErrInvalidDataURL   = errors.New("invalid data URL")
	// ErrUnsupportedImage is returned for anything but PNG and JPEG.
	ErrUnsupportedImage = errors.New("unsupported image type, use PNG or JPEG")
)

var imageExtMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".jpe":  "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// ImageInput is an uploaded or captured chart image.
type ImageInput struct {
	Data        []byte
	FileName    string
	ContentType string
}

// EncodedImage is an image ready to be attached to a completion request.
type EncodedImage struct {
	MIME    string
	Data    []byte
	DataURL string
}

// GuessMIME returns the MIME type implied by the extension of filename, or
// fallback when the extension is missing or unknown.
func GuessMIME(filename, fallback string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fallback
	}
	if mt, ok := imageExtMIME[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = mt[:i]
		}
		return strings.TrimSpace(mt)
	}
	return fallback
}

// CheckImageSize rejects images above MaxImageBytes.
func CheckImageSize(n int64) error {
	if n > MaxImageBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrImageTooLarge, n, MaxImageBytes)
	}
	return nil
}

// ImageToDataURL encodes data as a base64 data URL. The MIME type comes from
// filename. The second return value is the raw size in bytes.
func ImageToDataURL(data []byte, filename string) (string, int) {
	return dataURL(GuessMIME(filename, DefaultImageMIME), data), len(data)
}

func dataURL(mt string, data []byte) string {
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a base64 data URL into its MIME type and payload.
func DecodeDataURL(u string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrInvalidDataURL)
	}
	mt, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mt, data, nil
}

// acceptedImageMIME lists the image types the vision providers take.
var acceptedImageMIME = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

// imageMIME picks the MIME type of an upload. The file extension wins; a file
// without one falls back to the declared content type, then to the default.
func imageMIME(in ImageInput) string {
	if filepath.Ext(in.FileName) != "" {
		return GuessMIME(in.FileName, DefaultImageMIME)
	}

	mt, _, err := mime.ParseMediaType(in.ContentType)
	if err != nil || mt == "" || mt == "application/octet-stream" {
		return DefaultImageMIME
	}
	if mt == "image/jpg" || mt == "image/pjpeg" {
		return "image/jpeg"
	}
	return mt
}

// EncodeImage validates the input and prepares it for the providers. Only
// PNG and JPEG images are accepted.
func EncodeImage(in ImageInput) (*EncodedImage, error) {
	if len(in.Data) == 0 {
		return nil, ErrEmptyImage
	}
	if err := CheckImageSize(int64(len(in.Data))); err != nil {
		return nil, err
	}

	mt := imageMIME(in)
	if !acceptedImageMIME[mt] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, mt)
	}

	return &EncodedImage{
		MIME:    mt,
		Data:    in.Data,
		DataURL: dataURL(mt, in.Data),
	}, nil
}
