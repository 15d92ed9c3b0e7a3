package services

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"

	"blueprint-backend/models"
)

// whiteThreshold - 이 값보다 밝은 R,G,B 픽셀은 배경으로 간주
const whiteThreshold = 240

// ProcessedBlueprint is a floor-plan image ready to be served.
type ProcessedBlueprint struct {
	PNG    []byte
	Width  int
	Height int
}

// ProcessBlueprint decodes an uploaded floor plan, makes its near-white
// background transparent and re-encodes it as PNG. maxSide > 0 shrinks
// larger images to fit while keeping the aspect ratio.
func ProcessBlueprint(data []byte, maxSide int) (*ProcessedBlueprint, error) {
	if len(data) == 0 {
		return nil, models.NewError(models.ErrCodeInvalidInput, "empty image")
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, models.WrapError(models.ErrCodeInvalidInput, err, "decode blueprint image")
	}

	b := src.Bounds()
	if maxSide > 0 && (b.Dx() > maxSide || b.Dy() > maxSide) {
		src = imaging.Fit(src, maxSide, maxSide, imaging.Lanczos)
	}

	img := RemoveWhiteBackground(src)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, models.WrapError(models.ErrCodeInternal, err, "encode blueprint image")
	}

	return &ProcessedBlueprint{
		PNG:    buf.Bytes(),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

// RemoveWhiteBackground returns a copy of src where every pixel whose red,
// green and blue channels all exceed the threshold is fully transparent.
func RemoveWhiteBackground(src image.Image) *image.NRGBA {
	dst := imaging.Clone(src)
	pix := dst.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		if pix[i] > whiteThreshold && pix[i+1] > whiteThreshold && pix[i+2] > whiteThreshold {
			pix[i+3] = 0
		}
	}
	return dst
}
