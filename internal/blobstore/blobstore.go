// Package blobstore handles audio blob references: the upload path
// convention and resolution of a stored reference to a fetchable URL. The
// actual byte transport belongs to the storage backend.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/frogwatch/frogwatch-go/internal/conf"
	"github.com/frogwatch/frogwatch-go/internal/errors"
)

// audioPrefix is the fixed root of every audio object path.
const audioPrefix = "recordings_audio"

// Store resolves audio references against the configured blob storage and
// pushes new uploads to it.
type Store struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a store from the blob storage settings.
func New(settings *conf.BlobStoreSettings) *Store {
	return &Store{
		baseURL:    strings.TrimRight(settings.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewAudioRef generates the object path for a new upload owned by the given
// account: recordings_audio/{ownerId}/{generatedName}.
func NewAudioRef(ownerID string) string {
	return fmt.Sprintf("%s/%s/%s.wav", audioPrefix, ownerID, uuid.New().String())
}

// ResolveURL turns a stored audio reference into a fetchable URL.
func (s *Store) ResolveURL(audioRef string) (string, error) {
	if !strings.HasPrefix(audioRef, audioPrefix+"/") {
		return "", errors.Newf("invalid audio reference: %q", audioRef).
			Component("blobstore").
			Category(errors.CategoryValidation).
			Build()
	}
	return fmt.Sprintf("%s/%s", s.baseURL, audioRef), nil
}

// Upload pushes audio bytes to the storage backend under the given
// reference. A submission aborts when this fails, so no partial recording
// ever points at missing audio.
func (s *Store) Upload(ctx context.Context, audioRef string, audio []byte) error {
	target, err := s.ResolveURL(audioRef)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(audio))
	if err != nil {
		return errors.New(err).
			Component("blobstore").
			Category(errors.CategoryUpload).
			Build()
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.New(err).
			Component("blobstore").
			Category(errors.CategoryUpload).
			Context("audio_ref", audioRef).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf("audio upload rejected: status %d", resp.StatusCode).
			Component("blobstore").
			Category(errors.CategoryUpload).
			Context("audio_ref", audioRef).
			Build()
	}
	return nil
}

// OwnerFromRef extracts the owner segment of an audio reference.
func OwnerFromRef(audioRef string) (string, error) {
	parts := strings.Split(audioRef, "/")
	if len(parts) != 3 || parts[0] != audioPrefix || parts[1] == "" {
		return "", errors.Newf("invalid audio reference: %q", audioRef).
			Component("blobstore").
			Category(errors.CategoryValidation).
			Build()
	}
	return parts[1], nil
}
