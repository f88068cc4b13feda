// Package storage archives original rate confirmation uploads.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

// DocumentStore keeps one copy of each distinct upload.
type DocumentStore interface {
	// Save stores doc under its content hash and returns the object name.
	// Saving the same content twice is not an error.
	Save(ctx context.Context, doc entity.UploadedDocument, sha256Hex string) (string, error)
}

// ObjectName is <prefix>/<sha256>.<ext>.
func ObjectName(prefix, sha256Hex, mediaType string) string {
	name := sha256Hex + "." + constants.ExtForMediaType(mediaType)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	logger *slog.Logger
}

func NewGCSStore(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("storage: bucket cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucket), prefix: prefix, logger: logger}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Save writes the object only if it does not exist yet.
func (s *GCSStore) Save(ctx context.Context, doc entity.UploadedDocument, sha256Hex string) (string, error) {
	name := ObjectName(s.prefix, sha256Hex, doc.MediaType)
	w := s.bucket.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = doc.MediaType
	w.Metadata = map[string]string{"filename": doc.Filename}

	if _, err := io.Copy(w, bytes.NewReader(doc.Data)); err != nil {
		_ = w.Close()
		if alreadyExists(err) {
			s.logger.Debug("upload already archived", "object", name)
			return name, nil
		}
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		if alreadyExists(err) {
			s.logger.Debug("upload already archived", "object", name)
			return name, nil
		}
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	s.logger.Info("upload archived", "object", name, "bytes", len(doc.Data))
	return name, nil
}

// alreadyExists reports the precondition failure of a DoesNotExist write.
func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
