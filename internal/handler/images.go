package handler

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/soundwall/api/pkg/response"
)

// ImageHandler serves generated wallpapers and thumbnails from the
// data directory.
type ImageHandler struct {
	dataDir string
}

func NewImageHandler(dataDir string) *ImageHandler {
	return &ImageHandler{dataDir: dataDir}
}

// Serve handles GET /img/:filename
func (h *ImageHandler) Serve(c *fiber.Ctx) error {
	name := c.Params("filename")
	// Only bare filenames are served; anything path-like is rejected
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return response.NotFound(c, "Image not found")
	}

	path := filepath.Join(h.dataDir, name)
	if _, err := os.Stat(path); err != nil {
		return response.NotFound(c, "Image not found")
	}
	return c.SendFile(path)
}
