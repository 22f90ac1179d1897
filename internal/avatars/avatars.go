// Package avatars stores uploaded participant pictures and resolves the URL
// each client should display, falling back to the roster default.
package avatars

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"secretsanta/internal/blob"
	"secretsanta/pkg/domain"
)

const (
	// MaxUploadBytes caps an avatar upload.
	MaxUploadBytes = 2 << 20
	presignExpiry  = time.Hour
)

// UploadError reports an unacceptable upload.
type UploadError struct {
	Reason string
}

func (e UploadError) Error() string { return "avatar upload rejected: " + e.Reason }

// Service scopes avatar objects by deployment id.
type Service struct {
	store      blob.Store
	roster     domain.Roster
	prefix     string
	publicBase string
}

// New constructs a Service. publicBase is the URL prefix under which the HTTP
// layer serves avatars from drivers that cannot presign.
func New(store blob.Store, roster domain.Roster, deployment, publicBase string) *Service {
	if deployment == "" {
		deployment = "default-app-id"
	}
	return &Service{
		store:      store,
		roster:     roster,
		prefix:     path.Join("avatars", deployment) + "/",
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

func (s *Service) key(id string) string { return s.prefix + id }

// Upload validates and stores an image for participant id, replacing any
// previous upload.
func (s *Service) Upload(ctx context.Context, id, contentType string, r io.Reader) (blob.Info, error) {
	if _, ok := s.roster.Find(id); !ok {
		return blob.Info{}, UploadError{Reason: fmt.Sprintf("unknown participant %q", id)}
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return blob.Info{}, fmt.Errorf("read avatar: %w", err)
	}
	if len(data) == 0 {
		return blob.Info{}, UploadError{Reason: "empty body"}
	}
	if len(data) > MaxUploadBytes {
		return blob.Info{}, UploadError{Reason: fmt.Sprintf("larger than %d bytes", MaxUploadBytes)}
	}
	sniffed := http.DetectContentType(data)
	if !strings.HasPrefix(sniffed, "image/") {
		return blob.Info{}, UploadError{Reason: "not an image (" + sniffed + ")"}
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = sniffed
	}
	return s.store.Put(ctx, s.key(id), bytes.NewReader(data), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"participant": id},
	})
}

// Open returns the uploaded image for id, wrapping blob.ErrNotFound when none exists.
func (s *Service) Open(ctx context.Context, id string) (blob.Info, io.ReadCloser, error) {
	return s.store.Get(ctx, s.key(id))
}

// Remove deletes the upload for id, reverting to the roster default.
func (s *Service) Remove(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, s.key(id))
}

// Resolve returns the display URL for one participant.
func (s *Service) Resolve(ctx context.Context, id string) (string, error) {
	p, ok := s.roster.Find(id)
	if !ok {
		return "", fmt.Errorf("unknown participant %q", id)
	}
	if _, err := s.store.Head(ctx, s.key(id)); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return p.Avatar, nil
		}
		return "", err
	}
	return s.uploadedURL(ctx, id)
}

// ResolveAll returns display URLs for the whole roster with a single listing.
// Storage errors degrade to the roster defaults.
func (s *Service) ResolveAll(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, s.roster.Len())
	for _, p := range s.roster.Participants() {
		out[p.ID] = p.Avatar
	}
	infos, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return out, fmt.Errorf("list avatars: %w", err)
	}
	for _, info := range infos {
		id := strings.TrimPrefix(info.Key, s.prefix)
		if _, ok := out[id]; !ok {
			continue
		}
		link, err := s.uploadedURL(ctx, id)
		if err != nil {
			return out, err
		}
		out[id] = link
	}
	return out, nil
}

func (s *Service) uploadedURL(ctx context.Context, id string) (string, error) {
	link, err := s.store.PresignURL(ctx, s.key(id), blob.SignedURLOptions{Expiry: presignExpiry})
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, blob.ErrUnsupported) {
		return "", err
	}
	return s.publicBase + "/" + url.PathEscape(id), nil
}
