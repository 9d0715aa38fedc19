// Package gh provides a GraphQL client for GitHub Projects v2 API.
// It implements a deep module interface - simple methods hiding complex GraphQL queries.
package gh

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/machinebox/graphql"
)

// DefaultEndpoint is the public GitHub GraphQL API.
const DefaultEndpoint = "https://api.github.com/graphql"

// DefaultTimeout bounds every request made by the client.
const DefaultTimeout = 30 * time.Second

// Options configures a Client.
type Options struct {
	Endpoint  string            // GraphQL endpoint, DefaultEndpoint if empty
	Token     string            // Opaque bearer token
	Timeout   time.Duration     // Per-request timeout, DefaultTimeout if zero
	Transport http.RoundTripper // Base transport, http.DefaultTransport if nil
	Logger    *log.Logger       // Receives raw request/response traces when Verbose is set
	Verbose   bool
}

// Client is a GitHub GraphQL API client for Projects v2.
// It provides high-level methods for querying and mutating project data.
type Client struct {
	gql   *graphql.Client
	token string
}

// New creates a new GitHub GraphQL client.
func New(opts Options) *Client {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &envelopeTransport{base: base},
	}
	client := graphql.NewClient(endpoint, graphql.WithHTTPClient(httpClient))

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.Verbose {
		client.Log = func(s string) { logger.Println(s) }
	}

	return &Client{
		gql:   client,
		token: opts.Token,
	}
}

// makeRequest executes a GraphQL request with authentication.
// This is a helper method to avoid repeating the authorization header setup.
func (c *Client) makeRequest(ctx context.Context, req *graphql.Request, resp interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	err := c.gql.Run(ctx, req, resp)

	// http.Client wraps transport failures in *url.Error; drop the method/URL
	// prefix so TransportError and ProtocolError reach callers directly.
	var ue *url.Error
	if errors.As(err, &ue) {
		var te *TransportError
		var pe *ProtocolError
		if errors.As(ue.Err, &te) || errors.As(ue.Err, &pe) {
			return ue.Err
		}
	}
	return err
}
