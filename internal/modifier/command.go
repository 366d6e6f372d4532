package modifier

import (
	"fmt"
	"strconv"
	"strings"
)

// Apply parses a textual command and calls the matching typed method.
//
//	crop <ratio>
//	crop <width> <height>
//	crop <top> <left> <bottom> <right>
//	resize <scale>
//	resize <width|max_N> <height|max_N>
//	watermark <path>
//	greyscale
func (p *Pipeline) Apply(command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty command", ErrUnknownCommand)
	}

	verb, args := strings.ToLower(fields[0]), fields[1:]
	switch verb {
	case "crop":
		return p.applyCrop(args)
	case "resize":
		return p.applyResize(args)
	case "watermark":
		if len(args) == 0 {
			return fmt.Errorf("%w: watermark takes a path", ErrInvalidArgumentCount)
		}
		// The path is the rest of the line so it may contain spaces.
		rest := strings.TrimSpace(command)
		return p.Watermark(strings.TrimSpace(rest[len(fields[0]):]))
	case "greyscale", "grayscale":
		if len(args) != 0 {
			return fmt.Errorf("%w: greyscale takes no arguments, got %d", ErrInvalidArgumentCount, len(args))
		}
		p.Greyscale()
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
}

// ApplyAll applies commands in order. Either all of them are queued or,
// on the first error, none are.
func (p *Pipeline) ApplyAll(commands []string) error {
	next := p.Clone()
	for i, cmd := range commands {
		if err := next.Apply(cmd); err != nil {
			return fmt.Errorf("command %d %q: %w", i, cmd, err)
		}
	}
	*p = *next
	return nil
}

func (p *Pipeline) applyCrop(args []string) error {
	switch len(args) {
	case 1:
		ratio, err := parseFloat(args[0])
		if err != nil {
			return err
		}
		return p.CropRatio(ratio)
	case 2:
		v, err := parseInts(args)
		if err != nil {
			return err
		}
		return p.CropBox(v[0], v[1])
	case 4:
		v, err := parseInts(args)
		if err != nil {
			return err
		}
		return p.CropEdges(v[0], v[1], v[2], v[3])
	default:
		return fmt.Errorf("%w: crop takes 1, 2 or 4 arguments, got %d", ErrInvalidArgumentCount, len(args))
	}
}

func (p *Pipeline) applyResize(args []string) error {
	switch len(args) {
	case 1:
		scale, err := parseFloat(args[0])
		if err != nil {
			return err
		}
		return p.ResizeScale(scale)
	case 2:
		w, err := ParseDimension(args[0])
		if err != nil {
			return err
		}
		h, err := ParseDimension(args[1])
		if err != nil {
			return err
		}
		return p.Resize(w, h)
	default:
		return fmt.Errorf("%w: resize takes 1 or 2 arguments, got %d", ErrInvalidArgumentCount, len(args))
	}
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDimension, s)
	}
	return f, nil
}

func parseInts(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDimension, a)
		}
		out[i] = v
	}
	return out, nil
}
