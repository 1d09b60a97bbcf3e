package media

import (
	"github.com/disintegration/imaging"

	"videoEditor/worker/domain"
)

// PrepareWatermark decodes the watermark raster and scales it down so it
// never covers more than a corner of the frame. Output is written as PNG to
// keep the alpha channel; an existing file at destPath is overwritten.
func PrepareWatermark(srcPath, destPath string, maxWidth int) error {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return domain.NewError(domain.KindComposeFailed, "open watermark: %v", err)
	}
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	if err := imaging.Save(img, destPath); err != nil {
		return domain.NewError(domain.KindComposeFailed, "save watermark: %v", err)
	}
	return nil
}
