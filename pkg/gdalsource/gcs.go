package gdalsource

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
)

// GCSOptions tunes the block cache used for gs:// rasters
type GCSOptions struct {
	// BlockSize is an osio size string such as "512k"
	BlockSize string

	// NumCachedBlocks bounds the number of cached blocks
	NumCachedBlocks int
}

// DefaultGCSOptions caches 512 blocks of 512k
func DefaultGCSOptions() GCSOptions {
	return GCSOptions{BlockSize: "512k", NumCachedBlocks: 512}
}

var (
	gcsOnce sync.Once
	gcsErr  error
)

// IsGCS reports whether name points to a Google Cloud Storage object
func IsGCS(name string) bool {
	return strings.HasPrefix(name, "gs://")
}

// RegisterGCS installs a gs:// handler backed by a cached osio adapter.
// Only the first call has an effect.
func RegisterGCS(ctx context.Context, opts GCSOptions) error {
	gcsOnce.Do(func() {
		gcsErr = registerGCS(ctx, opts)
	})
	return gcsErr
}

func registerGCS(ctx context.Context, opts GCSOptions) error {
	stcl, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create gcs storage client: %w", err)
	}
	gs, err := osio.GCSHandle(ctx, osio.GCSClient(stcl))
	if err != nil {
		return fmt.Errorf("osio.gcshandle: %w", err)
	}
	gsa, err := osio.NewAdapter(gs, osio.BlockSize(opts.BlockSize), osio.NumCachedBlocks(opts.NumCachedBlocks))
	if err != nil {
		return fmt.Errorf("osio.newadapter: %w", err)
	}
	if err := godal.RegisterVSIHandler("gs://", gsa); err != nil {
		return fmt.Errorf("godal.registervsi: %w", err)
	}
	return nil
}
