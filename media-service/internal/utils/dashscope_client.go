package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tattoo-app/media-service/internal/models"
)

const (
	dashScopeIntlURL = "https://dashscope-intl.aliyuncs.com/api/v1/services/aigc/multimodal-generation/generation"
	dashScopeCNURL   = "https://dashscope.aliyuncs.com/api/v1/services/aigc/multimodal-generation/generation"

	qwenImageModel = "qwen-image-plus"
	qwenEditModel  = "qwen-image-edit"
)

// DashScopeClient calls Qwen image models. Results are hosted by the
// provider, so only URLs come back.
type DashScopeClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewDashScopeClient(apiKey, region string) *DashScopeClient {
	endpoint := dashScopeIntlURL
	if strings.EqualFold(region, "cn") {
		endpoint = dashScopeCNURL
	}
	return &DashScopeClient{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// WithEndpoint overrides the API URL.
func (c *DashScopeClient) WithEndpoint(endpoint string) *DashScopeClient {
	c.endpoint = endpoint
	return c
}

type dashScopeContent struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type dashScopeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Output  struct {
		Results []struct {
			URL   string `json:"url"`
			Image string `json:"image"`
		} `json:"results"`
		Choices []struct {
			Message struct {
				Content []dashScopeContent `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
}

func (r *dashScopeResponse) imageURLs() []string {
	urls := []string{}
	for _, res := range r.Output.Results {
		if res.URL != "" {
			urls = append(urls, res.URL)
		} else if res.Image != "" {
			urls = append(urls, res.Image)
		}
	}
	for _, ch := range r.Output.Choices {
		for _, c := range ch.Message.Content {
			if c.Image != "" {
				urls = append(urls, c.Image)
			}
		}
	}
	return urls
}

// Generate uses DashScope's size notation, e.g. 1328*1328.
func (c *DashScopeClient) Generate(ctx context.Context, prompt, size string) ([]string, error) {
	return c.call(ctx, map[string]interface{}{
		"model": qwenImageModel,
		"input": map[string]interface{}{
			"messages": []map[string]interface{}{
				{"role": "user", "content": []dashScopeContent{{Text: prompt}}},
			},
		},
		"parameters": map[string]interface{}{
			"size":          strings.ReplaceAll(size, "x", "*"),
			"watermark":     false,
			"prompt_extend": true,
		},
	})
}

func (c *DashScopeClient) Edit(ctx context.Context, prompt string, images []string) ([]string, error) {
	content := make([]dashScopeContent, 0, len(images)+1)
	for _, img := range images {
		content = append(content, dashScopeContent{Image: img})
	}
	content = append(content, dashScopeContent{Text: prompt})
	return c.call(ctx, map[string]interface{}{
		"model": qwenEditModel,
		"input": map[string]interface{}{
			"messages": []map[string]interface{}{{"role": "user", "content": content}},
		},
		"parameters": map[string]interface{}{"negative_prompt": " ", "watermark": false},
	})
}

func (c *DashScopeClient) call(ctx context.Context, payload map[string]interface{}) ([]string, error) {
	if c.apiKey == "" {
		return nil, models.ErrProviderNotSet
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request error: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: dashscope unreachable: %v", models.ErrProvider, err)
	}
	defer resp.Body.Close()

	var out dashScopeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: dashscope status %d, undecodable body", models.ErrProvider, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: dashscope %s: %s", models.ErrProvider, out.Code, out.Message)
	}
	urls := out.imageURLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: dashscope returned no image", models.ErrProvider)
	}
	return urls, nil
}
