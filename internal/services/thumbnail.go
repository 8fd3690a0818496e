package services

import (
	"bytes"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/radview/radview-backend/internal/platform/logger"
)

const (
	// Longer edge of a generated thumbnail.
	thumbnailMaxEdge = 256
	// JPEG quality factor for re-encoding (0.8).
	thumbnailJPEGQuality = 80
)

type ThumbnailGenerator interface {
	// Generate re-encodes a raster payload as a bounded JPEG preview.
	// Returns (nil, nil) for payloads that do not decode as a raster image;
	// callers must treat nil as "no thumbnail available", not as failure.
	Generate(data []byte) ([]byte, error)
}

type thumbnailGenerator struct {
	log *logger.Logger
}

func NewThumbnailGenerator(baseLog *logger.Logger) ThumbnailGenerator {
	return &thumbnailGenerator{log: baseLog.With("service", "ThumbnailGenerator")}
}

func (g *thumbnailGenerator) Generate(data []byte) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Opaque payload (DICOM container or otherwise): no thumbnail.
		return nil, nil
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	tw, th := boundedDimensions(w, h, thumbnailMaxEdge)

	var out image.Image = src
	if tw != w || th != h {
		dst := image.NewRGBA(image.Rect(0, 0, tw, th))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		g.log.Warn("thumbnail encode failed", "source_format", format, "error", err)
		return nil, err
	}
	return buf.Bytes(), nil
}

// boundedDimensions clamps the longer edge to maxEdge, preserving aspect
// ratio. Dimensions at or under the bound pass through unchanged.
func boundedDimensions(w, h, maxEdge int) (int, int) {
	if w <= maxEdge && h <= maxEdge {
		return w, h
	}
	if w >= h {
		nh := h * maxEdge / w
		if nh < 1 {
			nh = 1
		}
		return maxEdge, nh
	}
	nw := w * maxEdge / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxEdge
}
