package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"midiphoria/engine"
)

// Encoder consumes the ordered frame sequence. PNG/MP4 encoding and
// audio muxing belong to external tooling; the exporter only needs
// something that accepts frames in index order.
type Encoder interface {
	WriteFrame(index int, frame engine.FrameState) error
	Close() error
}

// PPMDir writes one binary P6 .ppm file per frame into a directory,
// every pixel the frame's single color.
type PPMDir struct {
	dir           string
	width, height int
}

// NewPPMDir creates the output directory if needed.
func NewPPMDir(dir string, width, height int) (*PPMDir, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	return &PPMDir{dir: dir, width: width, height: height}, nil
}

func (p *PPMDir) WriteFrame(index int, frame engine.FrameState) error {
	r, g, b := frame.RGB255()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "P6\n%d %d\n255\n", p.width, p.height)
	buf.Write(bytes.Repeat([]byte{r, g, b}, p.width*p.height))

	path := filepath.Join(p.dir, fmt.Sprintf("frame_%06d.ppm", index))
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write frame %d: %w", index, err)
	}
	return nil
}

func (p *PPMDir) Close() error {
	return nil
}

// Discard drops every frame; useful for dry runs and tests.
type Discard struct{}

func (Discard) WriteFrame(index int, frame engine.FrameState) error { return nil }
func (Discard) Close() error                                        { return nil }

// Collect keeps every frame in memory, in index order.
type Collect struct {
	Frames []engine.FrameState
}

func (c *Collect) WriteFrame(index int, frame engine.FrameState) error {
	c.Frames = append(c.Frames, frame)
	return nil
}

func (c *Collect) Close() error {
	return nil
}
