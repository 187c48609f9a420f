// Package service 提供了检索相关的业务逻辑。
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"insurapolis-go/internal/config"
	"insurapolis-go/internal/model"
	"insurapolis-go/pkg/embedding"
	"insurapolis-go/pkg/log"
)

// PassageFilter 限定检索范围：只召回调用者订阅的保险公司与产品包的条款。
type PassageFilter struct {
	Companies []string
	Packages  []string
}

// SearchService 接口定义了条款段落的检索操作。
type SearchService interface {
	RetrievePassages(ctx context.Context, query string, filter PassageFilter, topK int) ([]model.PassageDTO, error)
}

type searchService struct {
	embeddingClient embedding.Client
	esClient        *elasticsearch.Client
	indexName       string
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(embeddingClient embedding.Client, esClient *elasticsearch.Client, esCfg config.ElasticsearchConfig) SearchService {
	return &searchService{
		embeddingClient: embeddingClient,
		esClient:        esClient,
		indexName:       esCfg.IndexName,
	}
}

// RetrievePassages 执行过滤后的语义检索：
// 先把问题向量化，再对条款索引做 knn 召回并叠加 BM25 匹配，按得分返回前 topK 条。
func (s *searchService) RetrievePassages(ctx context.Context, query string, filter PassageFilter, topK int) ([]model.PassageDTO, error) {
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("向量化查询失败: %w", err)
	}

	var filterClauses []map[string]interface{}
	if len(filter.Companies) > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"terms": map[string]interface{}{"company": filter.Companies},
		})
	}
	if len(filter.Packages) > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"terms": map[string]interface{}{"package": filter.Packages},
		})
	}

	knn := map[string]interface{}{
		"field":          "vector",
		"query_vector":   queryVector,
		"k":              topK,
		"num_candidates": topK * 10,
	}
	if len(filterClauses) > 0 {
		knn["filter"] = filterClauses
	}

	esQuery := map[string]interface{}{
		"size": topK,
		"knn":  knn,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{"match": map[string]interface{}{"text": query}},
				},
				"filter": filterClauses,
			},
		},
		"_source": []string{"text", "company", "category", "type", "article", "package", "source"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("编码检索请求失败: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("检索条款段落失败: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("检索接口返回错误: %s", string(bodyBytes))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64         `json:"_score"`
				Source model.PassageDTO `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("解析检索响应失败: %w", err)
	}

	passages := make([]model.PassageDTO, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		passage := hit.Source
		passage.Score = hit.Score
		passages = append(passages, passage)
	}

	log.Infof("[SearchService] 检索完成, query 长度: %d, 命中: %d", len(query), len(passages))
	return passages, nil
}
