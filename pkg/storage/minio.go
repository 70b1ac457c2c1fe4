// Package storage 提供了头像等对象的存储功能（MinIO）。
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"study-with-speech/internal/config"
	"study-with-speech/pkg/log"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// ErrInvalidImage 表示 data URL 格式错误或图片类型不受支持。
	ErrInvalidImage = errors.New("invalid image data")
	// ErrImageTooLarge 表示解码后的图片超过大小限制。
	ErrImageTooLarge = errors.New("image exceeds size limit")
)

const defaultMaxImageBytes = 2 << 20

// 支持的图片 MIME 类型及其扩展名。
var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ImageStore 负责持久化用户头像，返回最终写入用户记录的值。
type ImageStore interface {
	StoreProfileImage(ctx context.Context, userID uint, value string) (string, error)
}

// DataImage 是解析后的 data URL。
type DataImage struct {
	MIMEType  string
	Extension string
	Data      []byte
}

// ParseDataURL 解析 data:image/<type>;base64,<payload> 格式的字符串。
// 非 data URL 时 ok 为 false，调用方应按原样保存。
func ParseDataURL(value string, maxBytes int) (img *DataImage, ok bool, err error) {
	if !strings.HasPrefix(value, "data:") {
		return nil, false, nil
	}
	header, payload, found := strings.Cut(strings.TrimPrefix(value, "data:"), ",")
	if !found {
		return nil, true, fmt.Errorf("%w: missing payload", ErrInvalidImage)
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, true, fmt.Errorf("%w: payload must be base64", ErrInvalidImage)
	}
	mimeType = strings.ToLower(mimeType)
	ext, supported := imageExtensions[mimeType]
	if !supported {
		return nil, true, fmt.Errorf("%w: unsupported type %q", ErrInvalidImage, mimeType)
	}

	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+3 {
		return nil, true, ErrImageTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, true, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	if len(data) > maxBytes {
		return nil, true, ErrImageTooLarge
	}
	return &DataImage{MIMEType: mimeType, Extension: ext, Data: data}, true, nil
}

// passthroughStore 未配置对象存储时使用：仅校验 data URL，然后原样保存。
type passthroughStore struct {
	maxBytes int
}

// NewPassthroughStore 返回不上传任何内容的 ImageStore。
func NewPassthroughStore(maxBytes int) ImageStore {
	return &passthroughStore{maxBytes: maxBytes}
}

func (s *passthroughStore) StoreProfileImage(_ context.Context, _ uint, value string) (string, error) {
	if _, _, err := ParseDataURL(value, s.maxBytes); err != nil {
		return "", err
	}
	return value, nil
}

// objectPutter 是 *minio.Client 中上传所需的子集。
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioStore 将 data URL 头像上传到 MinIO，并返回可公开访问的地址。
type MinioStore struct {
	client   objectPutter
	bucket   string
	baseURL  string
	maxBytes int
}

// NewMinioStore 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewMinioStore(ctx context.Context, cfg config.MinIOConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}
	log.Infof("MinIO 客户端初始化成功, bucket=%s", cfg.BucketName)

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = scheme + "://" + cfg.Endpoint
	}
	return newMinioStore(client, cfg.BucketName, baseURL, cfg.MaxImageBytes), nil
}

func newMinioStore(client objectPutter, bucket, baseURL string, maxBytes int) *MinioStore {
	return &MinioStore{
		client:   client,
		bucket:   bucket,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}
}

// StoreProfileImage 上传 data URL 图片；其他字符串（如外部链接）原样返回。
func (s *MinioStore) StoreProfileImage(ctx context.Context, userID uint, value string) (string, error) {
	img, ok, err := ParseDataURL(value, s.maxBytes)
	if err != nil {
		return "", err
	}
	if !ok {
		return value, nil
	}

	objectName := fmt.Sprintf("avatars/%d/%s.%s", userID, uuid.NewString(), img.Extension)
	_, err = s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(img.Data), int64(len(img.Data)), minio.PutObjectOptions{
		ContentType: img.MIMEType,
	})
	if err != nil {
		return "", fmt.Errorf("上传头像失败: %w", err)
	}
	return s.baseURL + "/" + s.bucket + "/" + objectName, nil
}
