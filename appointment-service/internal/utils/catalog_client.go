package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"tattoo-app/appointment-service/internal/models"
	"tattoo-app/pkg/apperr"
)

// CatalogClient fetches designs from catalog-service.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *CatalogClient) GetDesign(ctx context.Context, id string) (*models.Design, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/designs/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("new request error: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog-service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		// кривой id каталог отдаёт как 400, для бронирования это тот же "нет такого"
		return nil, apperr.New(apperr.ErrNotFound, "design %s not found", id)
	default:
		return nil, fmt.Errorf("non-200 from catalog-service: %d", resp.StatusCode)
	}

	var design models.Design
	if err := json.NewDecoder(resp.Body).Decode(&design); err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	return &design, nil
}
