package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/geekwala/security-scan-action/pkg/geekwala"
)

type Client struct {
	mock.Mock
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) RunScan(ctx context.Context, fileName, content string) (geekwala.Response, error) {
	args := c.Called(ctx, fileName, content)
	return args.Get(0).(geekwala.Response), args.Error(1)
}
