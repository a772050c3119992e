package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FetchArtifact reads the full contents of a model artifact given either a
// local filesystem path or an "s3://bucket/key" URI.
//
// This is the single entry point the voiceverify command's model loading
// uses to resolve ECAPA_SOURCE and PLDA_MODEL_PATH (ECAPA_SAVEDIR is only a
// local cache directory): each may be a path on disk or an object in S3
// (or an S3-compatible store), and callers should not need to know which.
func FetchArtifact(ctx context.Context, path string) ([]byte, error) {
	bucket, key, ok := parseS3URI(path)
	if !ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("storage: read artifact %s: %w", path, err)
		}
		return data, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config for %s: %w", path, err)
	}
	client := s3.NewFromConfig(cfg)
	store := NewS3(client, bucket, "")

	rc, err := store.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("storage: read s3 artifact %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("storage: download s3 artifact %s: %w", path, err)
	}
	return data, nil
}

// parseS3URI splits an "s3://bucket/key" URI into its bucket and key.
func parseS3URI(path string) (bucket, key string, ok bool) {
	const scheme = "s3://"
	if !strings.HasPrefix(path, scheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(path, scheme)
	idx := strings.IndexByte(rest, '/')
	if idx < 0 {
		return rest, "", true
	}
	return rest[:idx], rest[idx+1:], true
}
