package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
)

// objectSource serves a tensor file stored in S3-compatible object
// storage via ranged GETs. Each ReadAt issues one request; the reader's
// loading modes keep reads large and sequential, so per-request overhead
// stays small relative to payload size.
type objectSource struct {
	ctx    context.Context
	client *minio.Client
	bucket string
	key    string
	size   int64
}

// OpenObject opens an object in S3-compatible storage as a Source.
// The context is retained and governs all subsequent reads.
func OpenObject(ctx context.Context, client *minio.Client, bucket, key string) (Source, error) {
	info, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, fmt.Errorf("object %s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, err
	}
	return &objectSource{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		key:    key,
		size:   info.Size,
	}, nil
}

func (s *objectSource) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 || off >= s.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end >= s.size {
		end = s.size - 1
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return 0, err
	}
	obj, err := s.client.GetObject(s.ctx, s.bucket, s.key, opts)
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, p[:end-off+1])
	if err != nil {
		return n, err
	}
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

func (s *objectSource) Size() int64 {
	return s.size
}

func (s *objectSource) Close() error {
	return nil
}

// Upload publishes a finalized local tensor file to object storage.
// The writer needs a seekable sink for its final header write, so files
// destined for object storage are written locally first and uploaded
// whole.
func Upload(ctx context.Context, client *minio.Client, bucket, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = client.PutObject(ctx, bucket, key, f, fi.Size(), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("upload %s to %s/%s: %w", path, bucket, key, err)
	}
	return nil
}
