package library

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyImage is returned when changing the image to an empty reference.
var ErrEmptyImage = errors.New("image reference is empty")

// ResolveImage returns the stored profile image preference, or the default
// image when none is stored or it cannot be read. It never returns "".
func (s *Synchronizer) ResolveImage(ctx context.Context) string {
	if ref, ok := s.sessions.ImageRef(ctx); ok {
		return ref
	}
	return s.cfg.DefaultImage
}

// ChangeImage stores a newly picked profile image reference.
func (s *Synchronizer) ChangeImage(ctx context.Context, ref string) error {
	if ref == "" {
		return ErrEmptyImage
	}
	if err := s.sessions.SetImageRef(ctx, ref); err != nil {
		return fmt.Errorf("saving profile image: %w", err)
	}
	return nil
}
