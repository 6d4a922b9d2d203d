package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"tattoo-app/media-service/internal/models"
)

// OpenAIClient calls the Images API and returns the decoded PNG.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type openAIImagesResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt, size, background string) ([]byte, error) {
	payload := map[string]interface{}{
		"model":  c.model,
		"prompt": prompt,
		"size":   size,
		"n":      1,
	}
	if background != "" {
		payload["background"] = background
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, "/images/generations", "application/json", bytes.NewReader(body))
}

// Edit repaints the transparent areas of mask on top of image.
func (c *OpenAIClient) Edit(ctx context.Context, prompt, size string, image, mask []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{"model": c.model, "prompt": prompt, "size": size}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	for name, data := range map[string][]byte{"image[]": image, "mask": mask} {
		part, err := w.CreateFormFile(name, strings.TrimSuffix(name, "[]")+".png")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return c.do(ctx, "/images/edits", w.FormDataContentType(), &buf)
}

func (c *OpenAIClient) do(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	if c.apiKey == "" {
		return nil, models.ErrProviderNotSet
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("new request error: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: openai unreachable: %v", models.ErrProvider, err)
	}
	defer resp.Body.Close()

	var out openAIImagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: openai status %d, undecodable body", models.ErrProvider, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("%w: openai: %s", models.ErrProvider, msg)
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: openai returned no image", models.ErrProvider)
	}
	png, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: openai image is not base64", models.ErrProvider)
	}
	return png, nil
}
