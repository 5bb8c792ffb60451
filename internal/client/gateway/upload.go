package gateway

import (
	"Keepsake/internal/api/dto"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

// UploadSignature 预签名直传信息
type UploadSignature = dto.UploadSignatureDTO

// UploadError 对象存储拒绝上传，Message 来自存储返回的错误体
type UploadError struct {
	Status  int
	Code    string
	Message string
}

func (e *UploadError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("upload: http %d", e.Status)
	}
	return fmt.Sprintf("upload: %s %s", e.Code, e.Message)
}

// Progress 已写入字节数，Total 未知时为 0
type Progress struct {
	Sent  int64
	Total int64
}

// UploadResult 上传完成后的对象信息，Err 非空时其余字段无意义
type UploadResult struct {
	ObjectKey string
	PublicURL string
	Err       error
}

// UploadTask 进行中的上传，Progress 在完成后关闭，Done 恰好产生一个结果
type UploadTask struct {
	Progress <-chan Progress
	Done     <-chan UploadResult
}

func (c *Client) SignUpload(ctx context.Context, filename, contentType string) (*UploadSignature, error) {
	var sig UploadSignature
	req := dto.SignUploadDTO{Filename: filename, ContentType: contentType}
	if err := c.call(ctx, http.MethodPost, "/media/sign", nil, req, &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

// Upload 将文件直接写入对象存储，onProgress 可为 nil
func (c *Client) Upload(ctx context.Context, sig *UploadSignature, r io.Reader, size int64, onProgress func(Progress)) error {
	method := sig.Method
	if method == "" {
		method = http.MethodPut
	}
	body := &countingReader{r: r, total: size, onRead: onProgress}
	req, err := http.NewRequestWithContext(ctx, method, sig.UploadURL, body)
	if err != nil {
		return errors.Wrap(err, "build upload request")
	}
	// 预签名 PUT 要求明确的 Content-Length
	req.ContentLength = size
	for k, v := range sig.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "upload object")
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return parseUploadError(resp)
}

func parseUploadError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	uerr := &UploadError{Status: resp.StatusCode}
	var er miniogo.ErrorResponse
	if xml.Unmarshal(data, &er) == nil {
		uerr.Code = er.Code
		uerr.Message = er.Message
	}
	return uerr
}

// UploadMedia 签名并上传，进度与结果通过 UploadTask 的通道返回
func (c *Client) UploadMedia(ctx context.Context, filename, contentType string, r io.Reader, size int64) *UploadTask {
	progress := make(chan Progress, 16)
	done := make(chan UploadResult, 1)
	go func() {
		defer close(progress)
		sig, err := c.SignUpload(ctx, filename, contentType)
		if err != nil {
			done <- UploadResult{Err: err}
			return
		}
		err = c.Upload(ctx, sig, r, size, func(p Progress) {
			// 消费方跟不上时丢弃中间进度
			select {
			case progress <- p:
			default:
			}
		})
		if err != nil {
			done <- UploadResult{Err: err}
			return
		}
		done <- UploadResult{ObjectKey: sig.ObjectKey, PublicURL: sig.PublicURL}
	}()
	return &UploadTask{Progress: progress, Done: done}
}

// Wait 丢弃进度，阻塞直到上传结束
func (t *UploadTask) Wait(ctx context.Context) UploadResult {
	go func() {
		for range t.Progress {
		}
	}()
	select {
	case res := <-t.Done:
		return res
	case <-ctx.Done():
		return UploadResult{Err: ctx.Err()}
	}
}

type countingReader struct {
	r      io.Reader
	sent   atomic.Int64
	total  int64
	onRead func(Progress)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.onRead != nil {
		c.onRead(Progress{Sent: c.sent.Add(int64(n)), Total: c.total})
	}
	return n, err
}
