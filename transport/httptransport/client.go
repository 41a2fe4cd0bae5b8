// Package httptransport implements the remote product API over HTTP: a
// client used by the sync engine and an in-memory reference server.
package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	syncErrors "github.com/c0deZ3R0/productsync/errors"
	"github.com/c0deZ3R0/productsync/logging"
	"github.com/c0deZ3R0/productsync/synckit"
)

// Client implements synckit.RemoteClient against the product API.
type Client struct {
	baseURL    string
	http       *http.Client
	customHTTP bool
	logger     *slog.Logger
	options    *ClientOptions
}

var _ synckit.RemoteClient = (*Client)(nil)

// NewClient creates a client for the API rooted at baseURL,
// e.g. "https://app.getswipe.in/api".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logging.WithComponent(logging.Component("remote")).Logger,
		options: DefaultClientOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.options.MaxResponseSize <= 0 {
		c.options.MaxResponseSize = DefaultClientOptions().MaxResponseSize
	}
	if !c.customHTTP {
		c.http = &http.Client{Timeout: c.options.RequestTimeout}
	}
	return c
}

// BaseURL returns the base URL for the client
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListProducts fetches the full remote snapshot.
func (c *Client) ListProducts(ctx context.Context) ([]synckit.ProductDTO, error) {
	const op = syncErrors.OpListProducts
	url := c.baseURL + pathList

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, syncErrors.NewRemoteError(op, 0, "", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, op)
	if err != nil {
		return nil, err
	}

	var rows []JSONProduct
	if err := json.Unmarshal(body, &rows); err != nil {
		c.logger.Error("Failed to decode product listing", slog.String("error", err.Error()))
		return nil, syncErrors.NewRemoteError(op, http.StatusOK, "malformed listing", fmt.Errorf("failed to decode response: %w", err))
	}

	products := make([]synckit.ProductDTO, 0, len(rows))
	for _, row := range rows {
		products = append(products, toDTO(row, c.options.ImageBaseURL))
	}

	c.logger.Debug("Listing fetched", slog.Int("count", len(products)))
	return products, nil
}

// CreateProduct posts one product as multipart form data. At most one image
// is sent, as files[].
func (c *Client) CreateProduct(ctx context.Context, p synckit.CreateProductRequest) (synckit.CreateReceipt, error) {
	const op = syncErrors.OpCreateProduct
	url := c.baseURL + pathAdd

	payload, contentType, err := encodeCreate(p)
	if err != nil {
		return synckit.CreateReceipt{}, syncErrors.NewRemoteError(op, 0, "", fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return synckit.CreateReceipt{}, syncErrors.NewRemoteError(op, 0, "", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, op)
	if err != nil {
		return synckit.CreateReceipt{}, err
	}

	var resp JSONCreateResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return synckit.CreateReceipt{}, syncErrors.NewRemoteError(op, http.StatusOK, "malformed response", fmt.Errorf("failed to decode response: %w", err))
		}
	}
	if resp.Success != nil && !*resp.Success {
		return synckit.CreateReceipt{}, syncErrors.NewRemoteError(op, http.StatusUnprocessableEntity, resp.Message, fmt.Errorf("server rejected product: %s", resp.Message))
	}

	c.logger.Debug("Product created", slog.String("product_id", resp.ProductID))
	return synckit.CreateReceipt{Message: resp.Message, ProductID: resp.ProductID}, nil
}

// Ping reports whether the API answers at all. Any HTTP response counts as
// reachable; only transport failures are errors.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathList, nil)
	if err != nil {
		return syncErrors.NewNetworkError(syncErrors.OpListProducts, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return syncErrors.NewNetworkError(syncErrors.OpListProducts, fmt.Errorf("network error: %w", err))
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	return nil
}

// do sends req and returns the body of a 2xx response. Everything else is a
// RemoteError with the status attached.
func (c *Client) do(req *http.Request, op syncErrors.Operation) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Request failed",
			slog.String("error", err.Error()),
			slog.String("url", req.URL.String()))
		return nil, syncErrors.NewRemoteError(op, 0, "", fmt.Errorf("network error: %w", err))
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, c.options.MaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, syncErrors.NewRemoteError(op, 0, "", fmt.Errorf("failed to read response: %w", err))
	}
	if int64(len(body)) > c.options.MaxResponseSize {
		return nil, syncErrors.NewRemoteError(op, resp.StatusCode, "response too large",
			fmt.Errorf("response exceeds %d bytes", c.options.MaxResponseSize))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(body)
		c.logger.Error("Request returned error status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("message", msg),
			slog.String("url", req.URL.String()))
		return nil, syncErrors.NewRemoteError(op, resp.StatusCode, msg,
			fmt.Errorf("server error (status %d): %s", resp.StatusCode, msg))
	}
	return body, nil
}

func errorMessage(body []byte) string {
	var e JSONError
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func encodeCreate(p synckit.CreateProductRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{fieldName, p.Name},
		{fieldType, p.Type},
		{fieldPrice, p.Price},
		{fieldTax, p.Tax},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if len(p.Image) > 0 {
		name := p.ImageName
		if name == "" {
			name = "product.jpg"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldFiles, name))
		h.Set("Content-Type", mimetype.Detect(p.Image).String())
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(p.Image); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
