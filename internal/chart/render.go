package chart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const fileExt = ".png"

// Renderer writes one PNG per station into a fixed directory
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
}

func NewRenderer(dir string, widthIn, heightIn float64) *Renderer {
	return &Renderer{
		dir:    dir,
		width:  vg.Length(widthIn) * vg.Inch,
		height: vg.Length(heightIn) * vg.Inch,
	}
}

// Path is where the chart of code is written
func (r *Renderer) Path(code string) string {
	return filepath.Join(r.dir, code+fileExt)
}

// Render draws the chart and replaces <dir>/<code>.png with it
func (r *Renderer) Render(in Input) (string, error) {
	if in.Code == "" || strings.ContainsAny(in.Code, `/\`) || in.Code == "." || in.Code == ".." {
		return "", fmt.Errorf("chart: invalid station code %q for a file name", in.Code)
	}

	fig, err := Build(in)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("chart: failed to create output dir: %w", err)
	}

	img := vgimg.New(r.width, r.height)
	fig.Draw(draw.New(img))

	path := r.Path(in.Code)
	if err := writeFileAtomic(path, vgimg.PngCanvas{Canvas: img}); err != nil {
		return "", err
	}
	return path, nil
}

func writeFileAtomic(path string, png vgimg.PngCanvas) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("chart: failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := png.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("chart: failed to encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("chart: failed to write png: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("chart: failed to replace %s: %w", path, err)
	}
	return nil
}
