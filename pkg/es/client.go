// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"insurapolis-go/internal/config"
	"insurapolis-go/pkg/log"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端，并确保条款段落索引存在。
// dims 是向量字段的维度，与 embedding 模型配置保持一致。
func InitES(esCfg config.ElasticsearchConfig, dims int) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName, dims)
}

// createIndexIfNotExists 检查索引是否存在，不存在时按条款段落结构创建。
func createIndexIfNotExists(indexName string, dims int) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	if dims <= 0 {
		dims = 1024
	}

	// 条款段落索引：正文全文字段 + 过滤用 keyword 字段 + 语义检索向量
	mapping := fmt.Sprintf(`{
	  "mappings": {
	    "properties": {
	      "text":     { "type": "text" },
	      "company":  { "type": "keyword" },
	      "category": { "type": "keyword" },
	      "type":     { "type": "keyword" },
	      "article":  { "type": "keyword" },
	      "package":  { "type": "keyword" },
	      "source":   { "type": "keyword" },
	      "vector": {
	        "type": "dense_vector",
	        "dims": %d,
	        "index": true,
	        "similarity": "cosine"
	      }
	    }
	  }
	}`, dims)

	createRes, err := ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", indexName, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("创建索引 '%s' 失败: %s", indexName, createRes.String())
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}
