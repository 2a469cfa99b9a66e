// Package clients talks to a running conversion server.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ruteri/tdf-pipeline/api"
	"github.com/ruteri/tdf-pipeline/interfaces"
)

// ConversionClient calls the conversion and admin endpoints of the server.
type ConversionClient struct {
	// ServerAddr is the base URL of the server, e.g. http://127.0.0.1:8080
	ServerAddr string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func NewConversionClient(serverAddr string) *ConversionClient {
	return &ConversionClient{ServerAddr: strings.TrimSuffix(serverAddr, "/")}
}

func (c *ConversionClient) Encrypt(ctx context.Context, format interfaces.ContainerFormat, items []api.Item) ([]api.Outcome, error) {
	return c.convert(ctx, "encrypt", format, items)
}

func (c *ConversionClient) Decrypt(ctx context.Context, format interfaces.ContainerFormat, items []api.Item) ([]api.Outcome, error) {
	return c.convert(ctx, "decrypt", format, items)
}

func (c *ConversionClient) convert(ctx context.Context, direction string, format interfaces.ContainerFormat, items []api.Item) ([]api.Outcome, error) {
	var resp api.ConvertResponse
	url := fmt.Sprintf("%s/api/v1/%s/%s", c.ServerAddr, direction, format)
	if err := c.do(ctx, http.MethodPost, url, api.ConvertRequest{Items: items}, &resp); err != nil {
		return nil, err
	}
	return resp.Outcomes, nil
}

// SetPlatform replaces the platform settings the server builds its SDK client with.
func (c *ConversionClient) SetPlatform(ctx context.Context, settings api.PlatformSettings) (*api.PlatformResponse, error) {
	var resp api.PlatformResponse
	if err := c.do(ctx, http.MethodPut, c.ServerAddr+"/api/admin/platform", settings, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Invalidate makes the server drop its SDK client.
func (c *ConversionClient) Invalidate(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.ServerAddr+"/api/admin/invalidate", nil, nil)
}

func (c *ConversionClient) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s returned non-2xx response: %d", url, resp.StatusCode)
		}
		return fmt.Errorf("%s returned error %d: %s", url, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}
