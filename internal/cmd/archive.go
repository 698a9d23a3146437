package cmd

import (
	"fmt"
	"path"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/areed1192/tap-federal-reserve/internal"
	"github.com/areed1192/tap-federal-reserve/internal/archive"
	"github.com/areed1192/tap-federal-reserve/internal/config"
	"github.com/areed1192/tap-federal-reserve/internal/local"
	"github.com/areed1192/tap-federal-reserve/internal/s3"
)

// newArchiver scopes a repository to a fresh sync id and wraps it in an
// archiver.
func newArchiver(c config.Archive, logger *zap.Logger) (*archive.Archiver, error) {
	l := logger.Named("archive")
	sid := uuid.New()

	var repository internal.Repository
	switch c.Type {
	case "local":
		if c.Local.Path == "" {
			return nil, fmt.Errorf("archive.local.path is required for a local archive")
		}
		repository = local.New(
			c.Local.Path,
			local.WithPrefix(sid.String()),
			local.WithLogger(l),
		)
	case "s3":
		if c.S3.Bucket == "" {
			return nil, fmt.Errorf("archive.s3.bucket is required for an s3 archive")
		}
		r, err := s3.New(
			s3.WithLogger(l),
			s3.WithRegion(c.S3.Region),
			s3.WithBucket(c.S3.Bucket),
			s3.WithEndpoint(c.S3.Endpoint),
			s3.WithPrefix(
				path.Join(
					c.S3.Prefix,
					sid.String(),
				),
			),
			s3.WithForcePathStyle(c.S3.ForcePathStyle),
		)
		if err != nil {
			return nil, fmt.Errorf("creating s3 repository: %w", err)
		}
		repository = r
	default:
		return nil, fmt.Errorf("unknown repository type: %s", c.Type)
	}

	l.Info("archiving sync run",
		zap.String("sync_id", sid.String()),
		zap.String("type", c.Type),
		zap.String("format", c.Format),
	)

	return archive.New(
		repository,
		archive.WithSyncID(sid),
		archive.WithFormat(c.Format),
		archive.WithLogger(logger),
	)
}
