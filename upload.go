package irtiff

import "context"

// Uploader publishes a produced raster file under key.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
}
