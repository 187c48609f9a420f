package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"insurapolis-go/internal/config"
	"insurapolis-go/pkg/log"
	"insurapolis-go/pkg/storage"
)

// DocumentHandler 负责保单源文档的下载链接签发。
type DocumentHandler struct{}

// NewDocumentHandler 创建一个新的 DocumentHandler。
func NewDocumentHandler() *DocumentHandler {
	return &DocumentHandler{}
}

// Download 为指定的对象生成一个限时的预签名下载链接。
// 引用段落携带的 source 字段即对象名，前端拿到链接后直接从对象存储下载。
func (h *DocumentHandler) Download(c *gin.Context) {
	object := c.Query("object")
	if object == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "object 参数不能为空",
		})
		return
	}

	url, err := storage.GetPresignedURL(c.Request.Context(), config.Conf.MinIO.BucketName, object, 15*time.Minute)
	if err != nil {
		log.Errorf("Download: failed to presign object %s: %v", object, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "生成下载链接失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"url": url},
	})
}
