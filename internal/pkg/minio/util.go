package minio

import (
	"Keepsake/internal/api/config"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

var errNotInitialized = fmt.Errorf("minio client is not initialized")

// PresignedPut 生成客户端直传的预签名 PUT 链接
func PresignedPut(ctx context.Context, objectName string, expiry time.Duration) (*url.URL, error) {
	if SignClient == nil {
		return nil, errNotInitialized
	}
	u, err := SignClient.PresignedPutObject(ctx, MainBucket, objectName, expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}
	return u, nil
}

// StatFile 读取对象元信息，确认客户端已完成上传
func StatFile(ctx context.Context, objectName string) (minio.ObjectInfo, error) {
	if Client == nil {
		return minio.ObjectInfo{}, errNotInitialized
	}
	return Client.StatObject(ctx, MainBucket, objectName, minio.StatObjectOptions{})
}

// GetFile 读取对象内容，调用方负责 Close
func GetFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if Client == nil {
		return nil, errNotInitialized
	}
	return Client.GetObject(ctx, MainBucket, objectName, minio.GetObjectOptions{})
}

// UploadFile 上传文件到MinIO
func UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	if Client == nil {
		return "", errNotInitialized
	}

	uploadInfo, err := Client.PutObject(ctx, MainBucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return uploadInfo.Key, nil
}

// DeleteFile 删除MinIO中的文件
func DeleteFile(ctx context.Context, objectName string) error {
	if Client == nil {
		return errNotInitialized
	}

	err := Client.RemoveObject(ctx, MainBucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// GetPublicURL 获取文件的公共访问URL
func GetPublicURL(objectName string) string {
	cfg := config.Cfg.MinIO

	protocol := "http"
	if cfg.ExternalUseSSL {
		protocol = "https"
	}

	return fmt.Sprintf("%s://%s/%s/%s", protocol, cfg.ExternalEndpoint, MainBucket, objectName)
}
