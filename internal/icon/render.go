package icon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rivaltray-io/rivaltray/internal/device"
)

// RasterizerTool is the external vector rasterizer.
const RasterizerTool = "rsvg-convert"

// ErrRenderFailure marks an unavailable rasterizer or a source it
// couldn't process.
var ErrRenderFailure = fmt.Errorf("vector rasterization failed")

// Rasterizer turns vector source bytes into raster image bytes at a
// target pixel size. The production implementation shells out; tests
// substitute an in-process fake.
type Rasterizer interface {
	Rasterize(ctx context.Context, svg []byte, size int) ([]byte, error)
}

// NewRasterizer returns a Rasterizer backed by rsvg-convert, staging
// its input and output files in workDir.
func NewRasterizer(runner device.Runner, workDir string) Rasterizer {
	return &rsvgRasterizer{runner: runner, workDir: workDir}
}

type rsvgRasterizer struct {
	runner  device.Runner
	workDir string
}

func (r *rsvgRasterizer) Rasterize(ctx context.Context, svg []byte, size int) ([]byte, error) {
	in, err := os.CreateTemp(r.workDir, "render-*.svg")
	if err != nil {
		return nil, fmt.Errorf("%w: stage svg: %v", ErrRenderFailure, err)
	}
	inPath := in.Name()
	defer os.Remove(inPath)

	if _, err := in.Write(svg); err != nil {
		in.Close()
		return nil, fmt.Errorf("%w: stage svg: %v", ErrRenderFailure, err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("%w: stage svg: %v", ErrRenderFailure, err)
	}

	outPath := strings.TrimSuffix(inPath, ".svg") + ".png"
	defer os.Remove(outPath)

	out, err := r.runner.Run(ctx, RasterizerTool,
		"-w", strconv.Itoa(size),
		"-h", strconv.Itoa(size),
		"-o", outPath,
		inPath,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}
	if !out.Success() {
		return nil, fmt.Errorf("%w: %s exited %d: %s",
			ErrRenderFailure, RasterizerTool, out.ExitCode, strings.TrimSpace(out.Stderr))
	}

	png, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: raster output missing: %v", ErrRenderFailure, err)
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("%w: raster output empty for %s", ErrRenderFailure, filepath.Base(inPath))
	}
	return png, nil
}
