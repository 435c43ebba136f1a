package artifactstore

import (
	"context"
	"fmt"

	"jdsx/internal/config"
)

// Open builds the store selected by cfg. The returned close function
// releases any connection and is never nil. A nil Store means publishing
// is disabled.
func Open(ctx context.Context, cfg config.PublishConfig) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "", config.PublishNone:
		return nil, noop, nil
	case config.PublishFile:
		s, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case config.PublishS3:
		s, err := NewS3Store(S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case config.PublishPostgres:
		s, db, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		return s, db.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown publish backend %q", cfg.Backend)
}
