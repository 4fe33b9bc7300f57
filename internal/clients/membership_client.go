// internal/clients/membership_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"librarium/internal/fault"
	"librarium/internal/membership"
)

// MembershipClient talks to the membership service over HTTP.
type MembershipClient struct {
	baseURL string
	client  *http.Client
}

func NewMembershipClient(baseURL string) *MembershipClient {
	return &MembershipClient{baseURL: baseURL, client: http.DefaultClient}
}

func (c *MembershipClient) GetReader(ctx context.Context, id uuid.UUID) (*membership.Reader, error) {
	ctx, span := otel.Tracer("clients").Start(ctx, "MembershipClient.GetReader")
	defer span.End()
	span.SetAttributes(attribute.String("reader.id", id.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/readers/%s", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fault.Connectivity(err, "membership service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fault.FromResponse(resp)
	}

	var reader membership.Reader
	if err := json.NewDecoder(resp.Body).Decode(&reader); err != nil {
		return nil, fault.Request(http.StatusBadGateway, "malformed membership response: %v", err)
	}
	return &reader, nil
}

func (c *MembershipClient) Notify(ctx context.Context, readerID uuid.UUID, message, severity string) error {
	ctx, span := otel.Tracer("clients").Start(ctx, "MembershipClient.Notify")
	defer span.End()
	span.SetAttributes(attribute.String("reader.id", readerID.String()))

	body, err := json.Marshal(struct {
		Message  string `json:"message"`
		Severity string `json:"severity"`
	}{Message: message, Severity: severity})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/readers/%s/notifications", c.baseURL, readerID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fault.Connectivity(err, "membership service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fault.FromResponse(resp)
	}
	return nil
}
