package modifier

import (
	"fmt"
	"math"
)

// The functions in this file are pure: they turn the running size of a
// pipeline and the caller's arguments into a concrete operation.

// ResolveCropRatio computes the crop that gives a width:height ratio of
// ratio. When width limits, the removed height is split 1/3 top and 2/3
// bottom so the upper part of the image is kept; when height limits the
// crop is centered.
func ResolveCropRatio(width, height int, ratio float64) (Crop, error) {
	if err := checkSize(width, height); err != nil {
		return Crop{}, err
	}
	if !finitePositive(ratio) {
		return Crop{}, fmt.Errorf("%w: crop ratio %v", ErrInvalidDimension, ratio)
	}

	w, h := float64(width), float64(height)
	var c Crop
	if w/h <= ratio {
		removed := h - w/ratio
		c.Top = round(removed / 3)
		c.Bottom = round(removed * 2 / 3)
	} else {
		c.Left = round((w - h*ratio) / 2)
		c.Right = c.Left
	}

	if err := checkCrop(width, height, c); err != nil {
		return Crop{}, err
	}
	return c, nil
}

// ResolveCropBox computes the crop that leaves a boxWidth x boxHeight
// region. Horizontal cropping is always centered. Vertical cropping is
// centered for landscape and square images and top-biased (1/3 : 2/3) for
// portrait ones.
func ResolveCropBox(width, height, boxWidth, boxHeight int) (Crop, error) {
	if err := checkSize(width, height); err != nil {
		return Crop{}, err
	}
	if boxWidth <= 0 || boxHeight <= 0 {
		return Crop{}, fmt.Errorf("%w: crop box %dx%d", ErrInvalidDimension, boxWidth, boxHeight)
	}
	if boxWidth > width || boxHeight > height {
		return Crop{}, fmt.Errorf("%w: crop box %dx%d exceeds image %dx%d", ErrInvalidDimension, boxWidth, boxHeight, width, height)
	}

	var c Crop
	c.Left = round(float64(width-boxWidth) / 2)
	c.Right = c.Left

	removed := float64(height - boxHeight)
	if float64(width)/float64(height) >= 1 {
		c.Top = round(removed / 2)
		c.Bottom = c.Top
	} else {
		c.Top = round(removed / 3)
		c.Bottom = round(removed * 2 / 3)
	}

	if err := checkCrop(width, height, c); err != nil {
		return Crop{}, err
	}
	return c, nil
}

// ResolveCropEdges validates explicit edge offsets.
func ResolveCropEdges(width, height, top, left, bottom, right int) (Crop, error) {
	if err := checkSize(width, height); err != nil {
		return Crop{}, err
	}
	c := Crop{Top: top, Left: left, Bottom: bottom, Right: right}
	if top < 0 || left < 0 || bottom < 0 || right < 0 {
		return Crop{}, fmt.Errorf("%w: negative offset in %s", ErrInvalidDimension, c)
	}
	if err := checkCrop(width, height, c); err != nil {
		return Crop{}, err
	}
	return c, nil
}

// ResolveResize computes the target size for a width/height argument
// pair. At most one of the two may be a maximum. A maximum on width
// scales from the exact height and clamps; a maximum on height is the
// mirror image. Without a maximum, a zero side is derived from the other.
func ResolveResize(width, height int, w, h Dimension) (Resize, error) {
	if err := checkSize(width, height); err != nil {
		return Resize{}, err
	}
	if w.Max && h.Max {
		return Resize{}, fmt.Errorf("%w: resize %s %s has two maximums", ErrInvalidDimension, w, h)
	}
	if w.Value < 0 || h.Value < 0 || (w.Max && w.Value == 0) || (h.Max && h.Value == 0) {
		return Resize{}, fmt.Errorf("%w: resize %s %s", ErrInvalidDimension, w, h)
	}

	rw, rh := float64(width), float64(height)
	var r Resize
	switch {
	case w.Max:
		r.Height = h.Value
		r.Width = round(float64(r.Height) / rh * rw)
		if r.Width > w.Value {
			r.Width = w.Value
			r.Height = round(float64(r.Width) / rw * rh)
		}
	case h.Max:
		r.Width = w.Value
		r.Height = round(float64(r.Width) / rw * rh)
		if r.Height > h.Value {
			r.Height = h.Value
			r.Width = round(float64(r.Height) / rh * rw)
		}
	default:
		if w.Value == 0 && h.Value == 0 {
			return Resize{}, fmt.Errorf("%w: resize 0 0", ErrInvalidDimension)
		}
		r.Width, r.Height = w.Value, h.Value
		if r.Height == 0 {
			r.Height = round(float64(r.Width) / rw * rh)
		}
		if r.Width == 0 {
			r.Width = round(float64(r.Height) / rh * rw)
		}
	}

	if r.Width <= 0 || r.Height <= 0 {
		return Resize{}, fmt.Errorf("%w: resize %s %s resolves to %dx%d", ErrInvalidDimension, w, h, r.Width, r.Height)
	}
	return r, nil
}

// ResolveResizeScale scales both sides by a positive factor.
func ResolveResizeScale(width, height int, scale float64) (Resize, error) {
	if err := checkSize(width, height); err != nil {
		return Resize{}, err
	}
	if !finitePositive(scale) {
		return Resize{}, fmt.Errorf("%w: resize scale %v", ErrInvalidDimension, scale)
	}

	r := Resize{
		Width:  round(float64(width) * scale),
		Height: round(float64(height) * scale),
	}
	if r.Width <= 0 || r.Height <= 0 {
		return Resize{}, fmt.Errorf("%w: resize scale %v resolves to %dx%d", ErrInvalidDimension, scale, r.Width, r.Height)
	}
	return r, nil
}

func checkSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: image size %dx%d", ErrInvalidDimension, width, height)
	}
	return nil
}

func checkCrop(width, height int, c Crop) error {
	w, h := c.Apply(width, height)
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %s leaves %dx%d of %dx%d", ErrInvalidDimension, c, w, h, width, height)
	}
	return nil
}

func finitePositive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// round rounds half away from zero.
func round(f float64) int {
	return int(math.Round(f))
}
