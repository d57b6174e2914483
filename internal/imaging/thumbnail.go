package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

// ThumbnailPrefix is prepended to the source filename, keeping
// thumbnails in the same directory as their originals.
const ThumbnailPrefix = "thumb_"

// Resizer scales wallpaper images down to thumbnails.
type Resizer struct{}

func NewResizer() *Resizer {
	return &Resizer{}
}

// Thumbnail scales the image at path to the given height, preserving
// the aspect ratio, and writes it beside the original. Returns the
// thumbnail path.
func (r *Resizer) Thumbnail(path string, height int) (string, error) {
	if height <= 0 {
		return "", fmt.Errorf("invalid thumbnail height %d", height)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("decode image %s: %w", path, err)
	}

	bounds := src.Bounds()
	if bounds.Dy() == 0 {
		return "", fmt.Errorf("image %s has zero height", path)
	}
	width := bounds.Dx() * height / bounds.Dy()
	if width < 1 {
		width = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	dir, name := filepath.Split(path)
	thumbPath := filepath.Join(dir, ThumbnailPrefix+name)

	out, err := os.Create(thumbPath)
	if err != nil {
		return "", fmt.Errorf("create thumbnail: %w", err)
	}
	defer out.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(out, dst, &jpeg.Options{Quality: 85})
	default:
		err = png.Encode(out, dst)
	}
	if err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return thumbPath, nil
}
