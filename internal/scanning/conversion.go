package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// maxPageWidth caps the width of stored page images. Phone photos routinely
// exceed the request-size limits of hosted OCR services; downscaling keeps
// uploads under those limits without hurting recognition.
const maxPageWidth = 2000

// PreparePage normalizes one captured page to PNG: PDFs are rasterized,
// HEIC photos are decoded with the pure Go decoder, everything else goes
// through the standard image decoders. Oversized photos are downscaled.
// Returns the PNG data and its MIME type.
func PreparePage(data []byte, contentType string) ([]byte, string, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg" // default for phone uploads
	}

	img, err := decodePage(data, mimeType)
	if err != nil {
		return nil, "", err
	}

	if img.Bounds().Dx() > maxPageWidth {
		img = imaging.Resize(img, maxPageWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encoding page: %w", err)
	}

	return buf.Bytes(), "image/png", nil
}

func decodePage(data []byte, mimeType string) (image.Image, error) {
	switch {
	case mimeType == "application/pdf":
		doc, err := fitz.NewFromMemory(data)
		if err != nil {
			return nil, fmt.Errorf("opening pdf: %w", err)
		}
		defer doc.Close()

		// One uploaded PDF counts as one capture page.
		img, err := doc.Image(0)
		if err != nil {
			return nil, fmt.Errorf("rendering pdf page: %w", err)
		}
		return img, nil

	case isHEIC(data, mimeType):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding heic page: %w", err)
		}
		return img, nil

	default:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding page image: %w", err)
		}
		return img, nil
	}
}

// isHEIC sniffs the ftyp box brands used by iPhone photos; the standard
// image package cannot decode them.
func isHEIC(data []byte, mimeType string) bool {
	if strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif") {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
