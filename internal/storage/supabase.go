package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	supabasestorage "github.com/supabase-community/storage-go"
)

// Supabase stores objects in a Supabase Storage bucket
type Supabase struct {
	client    *supabasestorage.Client
	bucket    string
	publicURL string
}

// NewSupabase creates a Supabase provider. publicBaseURL overrides the
// default <projectURL>/storage/v1/object/public/<bucket> prefix.
func NewSupabase(projectURL, serviceKey, bucket, publicBaseURL string) *Supabase {
	projectURL = strings.TrimRight(projectURL, "/")
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("%s/storage/v1/object/public/%s", projectURL, bucket)
	}
	return &Supabase{
		client:    supabasestorage.NewClient(projectURL+"/storage/v1", serviceKey, nil),
		bucket:    bucket,
		publicURL: publicBaseURL,
	}
}

// Put uploads body, replacing any object already stored under key
func (s *Supabase) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	upsert := true
	_, err := s.client.UploadFile(s.bucket, key, body, supabasestorage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Delete removes key from the bucket
func (s *Supabase) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(s.bucket, []string{key}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL of key
func (s *Supabase) URL(key string) string {
	return joinURL(s.publicURL, key)
}
