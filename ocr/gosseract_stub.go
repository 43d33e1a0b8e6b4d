//go:build !ocr

package ocr

import "context"

// Client is the placeholder used when the "ocr" build tag is not set.
type Client struct{}

// NewClient returns ErrOCRNotEnabled. Rebuild with -tags ocr.
func NewClient(languages ...string) (*Client, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op and safe on a nil client.
func (c *Client) Close() error { return nil }

// Text returns ErrOCRNotEnabled.
func (c *Client) Text(ctx context.Context, img []byte) (string, error) {
	return "", ErrOCRNotEnabled
}

// Words returns ErrOCRNotEnabled.
func (c *Client) Words(ctx context.Context, img []byte) ([]Word, error) {
	return nil, ErrOCRNotEnabled
}
