//go:build !ocr

package ocr

import (
	"context"
	"errors"
	"testing"
)

func TestStubNewClient(t *testing.T) {
	client, err := NewClient("eng")
	if !errors.Is(err, ErrOCRNotEnabled) {
		t.Errorf("NewClient() error = %v, want ErrOCRNotEnabled", err)
	}
	if client != nil {
		t.Error("NewClient() should return nil client")
	}
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
	if _, err := c.Words(context.Background(), nil); !errors.Is(err, ErrOCRNotEnabled) {
		t.Errorf("Words() error = %v, want ErrOCRNotEnabled", err)
	}
}
