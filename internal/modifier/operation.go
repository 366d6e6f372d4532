package modifier

import "fmt"

type Kind int

const (
	KindCrop Kind = iota + 1
	KindResize
	KindWatermark
	KindGreyscale
)

func (k Kind) String() string {
	switch k {
	case KindCrop:
		return "crop"
	case KindResize:
		return "resize"
	case KindWatermark:
		return "watermark"
	case KindGreyscale:
		return "greyscale"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Operation is one queued step. The set of implementations is closed:
// Crop, Resize, Watermark and Greyscale.
type Operation interface {
	Kind() Kind
	operation()
}

// Crop removes the given number of pixels from each edge.
type Crop struct {
	Top    int
	Left   int
	Bottom int
	Right  int
}

func (Crop) Kind() Kind { return KindCrop }
func (Crop) operation()  {}

// IsZero reports whether the crop removes nothing.
func (c Crop) IsZero() bool {
	return c.Top == 0 && c.Left == 0 && c.Bottom == 0 && c.Right == 0
}

// Apply returns the size of a width x height image after the crop.
func (c Crop) Apply(width, height int) (int, int) {
	return width - c.Left - c.Right, height - c.Top - c.Bottom
}

func (c Crop) String() string {
	return fmt.Sprintf("crop(top=%d left=%d bottom=%d right=%d)", c.Top, c.Left, c.Bottom, c.Right)
}

// Resize scales the image to an absolute size.
type Resize struct {
	Width  int
	Height int
}

func (Resize) Kind() Kind { return KindResize }
func (Resize) operation()  {}

func (r Resize) String() string {
	return fmt.Sprintf("resize(%dx%d)", r.Width, r.Height)
}

// Watermark overlays the image file at Path.
type Watermark struct {
	Path string
}

func (Watermark) Kind() Kind { return KindWatermark }
func (Watermark) operation()  {}

func (w Watermark) String() string {
	return fmt.Sprintf("watermark(%s)", w.Path)
}

type Greyscale struct{}

func (Greyscale) Kind() Kind { return KindGreyscale }
func (Greyscale) operation()  {}

func (Greyscale) String() string {
	return "greyscale()"
}
