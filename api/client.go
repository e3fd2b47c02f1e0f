// Package api implements the client-side API for code wishing to interact
// with the neurosim telemetry service. The methods of the [Client] type
// correspond to the REST API exposed by the server. The neurosim
// command-line client itself uses this package to interact with the backend
// service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"

	"github.com/neurosim/neurosim/envconfig"
	"github.com/neurosim/neurosim/version"
)

// Client encapsulates client state for interacting with the neurosim
// service. Use [ClientFromEnvironment] to create new Clients.
type Client struct {
	base *url.URL
	http *http.Client
}

// ClientFromEnvironment creates a new [Client] using configuration from the
// environment variable NEUROSIM_HOST, which points to the network host and
// port on which the neurosim service is listening. The format of this
// variable is:
//
//	<scheme>://<host>:<port>
//
// If the variable is not specified, a default host and port will be used.
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	if err := json.Unmarshal(body, &apiError); err != nil {
		// use the full body as the message if the response is not JSON
		apiError.ErrorMessage = string(body)
	}

	return apiError
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, respData any) error {
	requestURL := c.base.JoinPath(path)
	if query != nil {
		requestURL.RawQuery = query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL.String(), nil)
	if err != nil {
		return err
	}

	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", fmt.Sprintf("neurosim/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version()))

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if err := checkError(response, respBody); err != nil {
		return err
	}

	if respData != nil && len(bytes.TrimSpace(respBody)) > 0 {
		return json.Unmarshal(respBody, respData)
	}

	return nil
}

// Version returns the server version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &resp); err != nil {
		return "", err
	}

	return resp.Version, nil
}

// Heartbeat checks if the server is running.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodHead, "/", nil, nil)
}

// TelemetryNames lists every summary name in the server's telemetry store.
func (c *Client) TelemetryNames(ctx context.Context) ([]string, error) {
	var resp NamesResponse
	if err := c.do(ctx, http.MethodGet, "/api/telemetry/names", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Names, nil
}

// TelemetrySeries fetches one summary's records ordered by step. An empty
// runID selects every run.
func (c *Client) TelemetrySeries(ctx context.Context, name, runID string) (*SeriesResponse, error) {
	query := url.Values{"name": {name}}
	if runID != "" {
		query.Set("run", runID)
	}

	var resp SeriesResponse
	if err := c.do(ctx, http.MethodGet, "/api/telemetry/series", query, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}
