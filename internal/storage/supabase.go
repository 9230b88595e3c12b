package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	storagego "github.com/supabase-community/storage-go"
)

// SupabaseStore keeps objects in a public Supabase Storage bucket.
type SupabaseStore struct {
	client  *storagego.Client
	bucket  string
	baseURL string
}

// NewSupabaseStore connects with the service role key.
func NewSupabaseStore(supabaseURL, serviceKey, bucket string) (*SupabaseStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(supabaseURL), "/")
	if baseURL == "" || strings.TrimSpace(serviceKey) == "" || strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("%w: supabase url, service key and bucket are required", ErrConfigInvalid)
	}
	return &SupabaseStore{
		client:  storagego.NewClient(baseURL+"/storage/v1", serviceKey, nil),
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

func (s *SupabaseStore) Name() string { return "supabase" }

// Put uploads body under key, replacing an existing object.
func (s *SupabaseStore) Put(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	upsert := true
	if _, err := s.client.UploadFile(s.bucket, key, body, storagego.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return s.PublicURL(key), nil
}

func (s *SupabaseStore) Remove(_ context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(s.bucket, []string{key}); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoveFailed, err)
	}
	return nil
}

// PublicURL is the anonymous download URL of key.
func (s *SupabaseStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}
