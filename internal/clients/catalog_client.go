// internal/clients/catalog_client.go
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"librarium/internal/catalog"
	"librarium/internal/fault"
)

// CatalogClient talks to the catalog service over HTTP. Faults returned by
// the remote side keep their kind; transport failures surface as
// connectivity faults.
type CatalogClient struct {
	baseURL string
	client  *http.Client
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{baseURL: baseURL, client: http.DefaultClient}
}

func (c *CatalogClient) GetBook(ctx context.Context, id uuid.UUID) (*catalog.Book, error) {
	ctx, span := otel.Tracer("clients").Start(ctx, "CatalogClient.GetBook")
	defer span.End()
	span.SetAttributes(attribute.String("book.id", id.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/books/%s", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fault.Connectivity(err, "catalog service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fault.FromResponse(resp)
	}

	var book catalog.Book
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return nil, fault.Request(http.StatusBadGateway, "malformed catalog response: %v", err)
	}
	return &book, nil
}

// HoldCopy atomically consumes one available copy of a book.
func (c *CatalogClient) HoldCopy(ctx context.Context, id uuid.UUID) error {
	return c.post(ctx, "CatalogClient.HoldCopy", id, "hold")
}

// ReleaseCopy puts a previously held copy back.
func (c *CatalogClient) ReleaseCopy(ctx context.Context, id uuid.UUID) error {
	return c.post(ctx, "CatalogClient.ReleaseCopy", id, "release")
}

func (c *CatalogClient) post(ctx context.Context, spanName string, id uuid.UUID, action string) error {
	ctx, span := otel.Tracer("clients").Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("book.id", id.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/books/%s/%s", c.baseURL, id, action), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fault.Connectivity(err, "catalog service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fault.FromResponse(resp)
	}
	return nil
}
