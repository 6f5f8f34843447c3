// Package avatar turns uploaded images into square JPEG avatars.
package avatar

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"go-contacts-api/internal/util"
	"go-contacts-api/pkg/apierror"
)

const ContentType = "image/jpeg"

type Processor struct {
	size    int
	quality int
}

func NewProcessor(size int) *Processor {
	if size <= 0 {
		size = 250
	}
	return &Processor{size: size, quality: 90}
}

// Process decodes r, crops the largest centred square and scales it to the
// configured size. The result is always JPEG.
func (p *Processor) Process(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	if mimeType := util.SniffMIME(br); !util.IsAvatarMIME(mimeType) {
		return nil, apierror.New("UNSUPPORTED_TYPE", "avatar must be a JPEG, PNG, GIF, WebP or BMP image", mimeType, http.StatusUnsupportedMediaType)
	}

	src, _, err := image.Decode(br)
	if err != nil {
		return nil, apierror.New("UNSUPPORTED_TYPE", "cannot decode image", err.Error(), http.StatusUnsupportedMediaType)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, apierror.New("UNSUPPORTED_TYPE", "invalid image dimensions", "", http.StatusUnsupportedMediaType)
	}

	dst := image.NewRGBA(image.Rect(0, 0, p.size, p.size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, cropSquare(bounds), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}

	return buf.Bytes(), nil
}

func cropSquare(bounds image.Rectangle) image.Rectangle {
	side := min(bounds.Dx(), bounds.Dy())
	x0 := bounds.Min.X + (bounds.Dx()-side)/2
	y0 := bounds.Min.Y + (bounds.Dy()-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}
