package hubspot

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const apiURL = "https://api.hubapi.com"

// Client is a minimal HubSpot CRM client: contact lookup/creation and
// evaluation notes. It is a pure consumer of evaluation output; the
// interview flow never depends on it succeeding.
type Client struct {
	// ctx used only for http requests right now
	ctx        context.Context
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func New(ctx context.Context, logger *zap.Logger, token string) *Client {
	return &Client{
		ctx:    ctx,
		token:  token,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}
