package minio

import (
	"context"
	"io"
	"time"
)

// ObjectMeta 上传确认时需要的对象信息
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
}

// Store 将包级函数包装为可注入的对象存储
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := PresignedPut(ctx, key, expiry)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s *Store) Stat(ctx context.Context, key string) (*ObjectMeta, error) {
	info, err := StatFile(ctx, key)
	if err != nil {
		return nil, err
	}
	return &ObjectMeta{Key: info.Key, Size: info.Size, ContentType: info.ContentType}, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return GetFile(ctx, key)
}

func (s *Store) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := UploadFile(ctx, key, reader, size, contentType)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return DeleteFile(ctx, key)
}

func (s *Store) PublicURL(key string) string {
	return GetPublicURL(key)
}
