// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"context"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"insurapolis-go/internal/config"
	"insurapolis-go/pkg/log"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
// 存储桶中存放条款原文档（保单 PDF 等），检索段落的 source 字段指向其中的对象。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	ctx := context.Background()
	exists, err := MinioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}
	if !exists {
		if err := MinioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}

	log.Info("MinIO 客户端初始化成功")
}

// GetPresignedURL 为指定对象生成预签名下载链接。
func GetPresignedURL(ctx context.Context, bucketName, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := MinioClient.PresignedGetObject(ctx, bucketName, objectName, expiry, nil)
	if err != nil {
		log.Errorf("生成预签名链接失败: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}
