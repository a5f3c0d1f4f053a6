package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"imgcache/configs"
	"imgcache/internal/domain/models"
	"imgcache/internal/domain/repositories"
)

// ObjectStore 基于S3兼容对象存储的实现
// 支持AWS S3、Cloudflare R2和MinIO，内容存为对象体，溯源元数据存为自定义元数据
type ObjectStore struct {
	client *s3.Client
	config *configs.S3Config
	logger *slog.Logger
}

var _ repositories.ObjectRepository = (*ObjectStore)(nil)

// NewObjectStore 创建S3对象存储客户端
func NewObjectStore(ctx context.Context, config *configs.S3Config, logger *slog.Logger) (*ObjectStore, error) {
	if config == nil {
		return nil, fmt.Errorf("s3 config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var options []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		options = append(options, awsconfig.WithRegion(config.Region))
	}

	// 自定义端点用于R2 / MinIO等S3兼容服务
	if config.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               config.Endpoint,
				HostnameImmutable: true,
				SigningRegion:     region,
			}, nil
		})
		options = append(options, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Options := []func(*s3.Options){}
	if config.ForcePathStyle {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	logger.InfoContext(ctx, "S3对象存储初始化成功",
		"bucket", config.Bucket,
		"region", config.Region,
		"endpoint", config.Endpoint)

	return &ObjectStore{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

// Get 读取缓存条目，对象不存在视为干净未命中
func (s *ObjectStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 get object failed: %w", err)
	}
	defer output.Body.Close()

	content, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3 object body: %w", err)
	}

	return &models.CacheEntry{
		Content:     content,
		ContentType: aws.ToString(output.ContentType),
		Metadata:    models.EntryMetadataFromMap(output.Metadata),
	}, nil
}

// Put 写入缓存条目
func (s *ObjectStore) Put(ctx context.Context, key string, entry *models.CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(entry.Content),
		ContentLength: aws.Int64(int64(len(entry.Content))),
		Metadata:      entry.Metadata.ToMap(),
	}
	if entry.ContentType != "" {
		input.ContentType = aws.String(entry.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put object failed: %w", err)
	}
	return nil
}

// Delete 删除缓存条目，返回条目先前是否存在
// S3的DeleteObject对不存在的键也返回成功，先用Head探测存在性
func (s *ObjectStore) Delete(ctx context.Context, key string) (bool, error) {
	meta, err := s.Head(ctx, key)
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return false, fmt.Errorf("s3 delete object failed: %w", err)
	}
	return true, nil
}

// Head 只读取条目元数据
func (s *ObjectStore) Head(ctx context.Context, key string) (*models.EntryMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	output, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 head object failed: %w", err)
	}

	meta := models.EntryMetadataFromMap(output.Metadata)
	return &meta, nil
}

// Close 释放客户端，S3客户端无持久连接需要关闭
func (s *ObjectStore) Close() error {
	return nil
}

// isNotFound 判断S3错误是否表示对象不存在
// GetObject返回NoSuchKey，HeadObject返回不带类型的404 NotFound
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
