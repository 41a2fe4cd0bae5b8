package httptransport

import (
	"log/slog"
	"net/http"
	"time"
)

// ClientOptions holds the tunables of a Client.
type ClientOptions struct {
	// RequestTimeout bounds every request, body included. Default 30s.
	RequestTimeout time.Duration

	// MaxResponseSize caps how many bytes of a response body are read. Default 10MB.
	MaxResponseSize int64

	// ImageBaseURL is joined onto relative image paths in the listing.
	ImageBaseURL string
}

// DefaultClientOptions returns the options a Client starts with.
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		RequestTimeout:  30 * time.Second,
		MaxResponseSize: 10 * 1024 * 1024,
		ImageBaseURL:    DefaultImageBaseURL,
	}
}

// ClientOption configures a Client using the functional options pattern
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. Its Timeout is left alone.
func WithHTTPClient(cl *http.Client) ClientOption {
	return func(c *Client) {
		c.http = cl
		c.customHTTP = true
	}
}

// WithTimeout sets the timeout for all requests
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.options.RequestTimeout = timeout
	}
}

// WithImageBaseURL sets the base for relative image paths.
func WithImageBaseURL(base string) ClientOption {
	return func(c *Client) {
		c.options.ImageBaseURL = base
	}
}

// WithMaxResponseSize sets the maximum allowed size of response bodies
func WithMaxResponseSize(size int64) ClientOption {
	return func(c *Client) {
		c.options.MaxResponseSize = size
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// ServerOptions holds the tunables of the reference Server.
type ServerOptions struct {
	// MaxUploadSize caps a create request body. Default 10MB.
	MaxUploadSize int64

	// UploadDir receives uploaded images. Empty keeps them in memory only.
	UploadDir string

	// ImagePrefix is the path stored as image for uploaded files.
	ImagePrefix string

	Logger *slog.Logger
}

// DefaultServerOptions returns the options a Server starts with.
func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		MaxUploadSize: 10 * 1024 * 1024,
		ImagePrefix:   "/uploads/",
	}
}

// ServerOption is a function that configures a ServerOptions struct
type ServerOption func(*ServerOptions)

// WithMaxUploadSize sets the maximum allowed size of create requests
func WithMaxUploadSize(size int64) ServerOption {
	return func(opts *ServerOptions) {
		opts.MaxUploadSize = size
	}
}

// WithUploadDir stores uploaded images under dir.
func WithUploadDir(dir string) ServerOption {
	return func(opts *ServerOptions) {
		opts.UploadDir = dir
	}
}

// WithServerLogger sets the server's logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(opts *ServerOptions) {
		opts.Logger = l
	}
}

// applyServerOptions creates a new ServerOptions with the given options applied
func applyServerOptions(opts ...ServerOption) *ServerOptions {
	options := DefaultServerOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}
