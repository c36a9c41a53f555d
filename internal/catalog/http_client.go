package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	catalogerrors "github.com/giftsbydivi/gifts-by-divi-sub000/internal/catalog/errors"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/config"
	"github.com/giftsbydivi/gifts-by-divi-sub000/pkg/money"
)

const maxResponseBytes = 4 << 20

// HTTPClient reads products from the headless content API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the API at cfg.BaseURL. The transport policy (timeouts, circuit breaking,
// tracing) belongs to client.
func NewHTTPClient(cfg config.HTTPClientConfig, client *http.Client, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  client,
		logger:  logger.With("component", "catalog_client"),
	}
}

// productDTO is the wire form of a product. Prices arrive as decimal numbers or strings.
type productDTO struct {
	ID             string              `json:"id"`
	Slug           string              `json:"slug"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	Price          decimal.Decimal     `json:"price"`
	CompareAtPrice decimal.NullDecimal `json:"compareAtPrice"`
	Images         []Image             `json:"images"`
	Categories     []string            `json:"categories"`
	InStock        bool                `json:"inStock"`
}

func (d productDTO) toProduct() Product {
	p := Product{
		ID:          d.ID,
		Slug:        d.Slug,
		Name:        d.Name,
		Description: d.Description,
		Price:       money.FromDecimal(d.Price),
		Images:      d.Images,
		Categories:  d.Categories,
		InStock:     d.InStock,
	}
	if d.CompareAtPrice.Valid {
		c := money.FromDecimal(d.CompareAtPrice.Decimal)
		p.CompareAtPrice = &c
	}
	return p
}

// GetProductBySlug retrieves a product by its slug.
func (c *HTTPClient) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	var dto productDTO
	found, err := c.get(ctx, "/products/"+url.PathEscape(slug), &dto)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, catalogerrors.ErrProductNotFound
	}
	p := dto.toProduct()
	return &p, nil
}

// GetProducts retrieves every published product.
func (c *HTTPClient) GetProducts(ctx context.Context) ([]Product, error) {
	return c.list(ctx, "/products")
}

// GetProductsByCategory retrieves the products tagged with category.
func (c *HTTPClient) GetProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	return c.list(ctx, "/categories/"+url.PathEscape(category)+"/products")
}

func (c *HTTPClient) list(ctx context.Context, path string) ([]Product, error) {
	var dtos []productDTO
	if _, err := c.get(ctx, path, &dtos); err != nil {
		return nil, err
	}
	products := make([]Product, len(dtos))
	for i, d := range dtos {
		products[i] = d.toProduct()
	}
	return products, nil
}

// get decodes the JSON body at path into out. A 404 is reported as found == false.
func (c *HTTPClient) get(ctx context.Context, path string, out any) (found bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", catalogerrors.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.WarnContext(ctx, "Catalog responded with unexpected status", "path", path, "status", resp.StatusCode)
		return false, fmt.Errorf("%w: GET %s returned %d", catalogerrors.ErrCatalogUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return false, fmt.Errorf("%w: failed to decode %s: %w", catalogerrors.ErrCatalogUnavailable, path, err)
	}
	return true, nil
}
