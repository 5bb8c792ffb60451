package util

import (
	"Keepsake/internal/pkg/consts"
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// IsMediaType 只接受图片与视频
func IsMediaType(contentType string) bool {
	return strings.HasPrefix(contentType, consts.MimePrefixImage) || strings.HasPrefix(contentType, consts.MimePrefixVideo)
}

// IsImageType 是否为可生成缩略图的图片
func IsImageType(contentType string) bool {
	return strings.HasPrefix(contentType, consts.MimePrefixImage)
}

// DetectContentType 优先使用客户端声明，否则按扩展名推断
func DetectContentType(filename, declared string) string {
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType
		}
	}
	return mime.TypeByExtension(strings.ToLower(path.Ext(filename)))
}

// BuildObjectKey 生成对象存储路径：couple/<id>/<yyyy/mm/dd>/<uuid><ext>
func BuildObjectKey(coupleID uint64, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	return "couple/" + strconv.FormatUint(coupleID, 10) + "/" + now.Format("2006/01/02") + "/" + uuid.NewString() + ext
}

// OwnsObjectKey 对象是否属于该情侣空间
func OwnsObjectKey(coupleID uint64, key string) bool {
	return strings.HasPrefix(key, "couple/"+strconv.FormatUint(coupleID, 10)+"/") && !strings.Contains(key, "..")
}

// ThumbKey 缩略图路径
func ThumbKey(objectKey string) string {
	return consts.ThumbPrefix + objectKey + ".jpg"
}

// MakeThumbnail 等比缩放到指定宽度并编码为 JPEG，返回缩略图与原图尺寸
func MakeThumbnail(r io.Reader, width int) ([]byte, image.Point, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("decode image: %w", err)
	}
	size := src.Bounds().Size()
	dst := src
	if size.X > width {
		dst = imaging.Resize(src, width, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err = imaging.Encode(&buf, dst, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), size, nil
}
