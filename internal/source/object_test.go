package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves a bucket of in-memory objects over the subset of the S3
// API the object source touches: HEAD for stat, GET with Range for
// reads, PUT for uploads.
type fakeS3 struct {
	objects map[string][]byte
	puts    map[string][]byte
}

func (s *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/testbucket/")
	data, ok := s.objects[key]

	switch r.Method {
	case http.MethodHead:
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"fake"`)
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"fake"`)
		if rng := r.Header.Get("Range"); rng != "" {
			var start, end int
			if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if end >= len(data) {
				end = len(data) - 1
			}
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
			w.Header().Set("Content-Length", fmt.Sprint(end-start+1))
			w.WriteHeader(http.StatusPartialContent)
			w.Write(data[start : end+1])
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)

	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// Clients may frame the payload as aws-chunked (streaming
		// signatures, trailing checksums).
		if r.Header.Get("X-Amz-Decoded-Content-Length") != "" ||
			strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeAWSChunked(body)
		}
		s.puts[key] = body
		w.Header().Set("ETag", `"fake"`)
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// decodeAWSChunked strips aws-chunked framing: hex chunk sizes with
// optional extensions, CRLF separators, a zero-size terminator and
// optional trailers.
func decodeAWSChunked(body []byte) []byte {
	var out []byte
	for {
		nl := strings.Index(string(body), "\r\n")
		if nl < 0 {
			return out
		}
		sizeStr := string(body[:nl])
		if i := strings.IndexByte(sizeStr, ';'); i >= 0 {
			sizeStr = sizeStr[:i]
		}
		var size int
		if _, err := fmt.Sscanf(sizeStr, "%x", &size); err != nil || size == 0 {
			return out
		}
		body = body[nl+2:]
		if len(body) < size {
			return out
		}
		out = append(out, body[:size]...)
		body = body[size:]
		if len(body) >= 2 {
			body = body[2:]
		}
	}
}

func newFakeClient(t *testing.T, fake *fakeS3) *minio.Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("test", "test", ""),
		Secure: false,
		// Pin a region so the client skips the GET ?location= bucket
		// lookup, which the fake does not serve.
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return client
}

func TestObjectSource(t *testing.T) {
	content := []byte("0123456789abcdefghij")
	fake := &fakeS3{
		objects: map[string][]byte{"model.tzr": content},
		puts:    map[string][]byte{},
	}
	client := newFakeClient(t, fake)

	src, err := OpenObject(context.Background(), client, "testbucket", "model.tzr")
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, int64(len(content)), src.Size())

	buf := make([]byte, 6)
	n, err := src.ReadAt(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte("abcdef"), buf)
}

func TestObjectSourceNotFound(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, puts: map[string][]byte{}}
	client := newFakeClient(t, fake)

	_, err := OpenObject(context.Background(), client, "testbucket", "missing.tzr")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.tzr")
	content := []byte("finalized tensor file")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	fake := &fakeS3{objects: map[string][]byte{}, puts: map[string][]byte{}}
	client := newFakeClient(t, fake)

	err := Upload(context.Background(), client, "testbucket", "uploads/model.tzr", path)
	require.NoError(t, err)
	assert.Equal(t, content, fake.puts["uploads/model.tzr"])
}
