// Package client is a Go client for the splatgrid HTTP API.
package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/splatgrid/api"
	"github.com/aukilabs/splatgrid/claims"
	splathttp "github.com/aukilabs/splatgrid/http"
	"github.com/aukilabs/splatgrid/lease"
	"github.com/aukilabs/splatgrid/models"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	defaultTimeout = time.Second * 10
)

// Client sends requests to a splatgrid server.
type Client struct {
	// The server endpoint, e.g. http://localhost:4000.
	Endpoint string

	// The bearer token sent with every request.
	Token string

	// The client used to send requests. Defaults to a client with
	// instrumented transport.
	HTTPClient *http.Client
}

// New returns a client for the given endpoint.
func New(endpoint, token string) *Client {
	return &Client{
		Endpoint: strings.TrimSuffix(endpoint, "/"),
		Token:    token,
		HTTPClient: &http.Client{
			Transport: metrics.HTTPTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
	}
}

func (c *Client) Maps(ctx context.Context) ([]models.Map, error) {
	var res struct {
		Maps []models.Map `json:"maps"`
	}
	err := c.do(ctx, http.MethodGet, "/maps", nil, &res)
	return res.Maps, err
}

func (c *Client) Cells(ctx context.Context, mapID string, resolution int) ([]api.Cell, error) {
	path := "/maps/" + url.PathEscape(mapID) + "/cells?gridResolution=" + strconv.Itoa(resolution)

	var res struct {
		Cells []api.Cell `json:"cells"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &res)
	return res.Cells, err
}

func (c *Client) Reserve(ctx context.Context, mapID string, resolution, index int) (api.Cell, error) {
	path := "/maps/" + url.PathEscape(mapID) + "/cells/" + strconv.Itoa(index) + "/reserve"

	var res struct {
		Cell api.Cell `json:"cell"`
	}
	err := c.do(ctx, http.MethodPost, path, map[string]int{"gridResolution": resolution}, &res)
	return res.Cell, err
}

// Attach fills a reserved cell and returns the id of the created claim.
func (c *Client) Attach(ctx context.Context, req lease.AttachRequest) (string, error) {
	var res struct {
		ClaimID string `json:"claimId"`
	}
	err := c.do(ctx, http.MethodPost, "/leases/attach", req, &res)
	return res.ClaimID, err
}

// Claims returns the claims of the lattice.
func (c *Client) Claims(ctx context.Context) ([]models.Claim, error) {
	var res struct {
		Claims []models.Claim `json:"claims"`
	}
	err := c.do(ctx, http.MethodGet, "/claims", nil, &res)
	return res.Claims, err
}

// MapClaims returns the claims filling the cells of a bounded map.
func (c *Client) MapClaims(ctx context.Context, mapID string) ([]models.Claim, error) {
	var res struct {
		Claims []models.Claim `json:"claims"`
	}
	err := c.do(ctx, http.MethodGet, "/maps/"+url.PathEscape(mapID)+"/claims", nil, &res)
	return res.Claims, err
}

func (c *Client) Claim(ctx context.Context, id string) (models.Claim, error) {
	var res struct {
		Claim models.Claim `json:"claim"`
	}
	err := c.do(ctx, http.MethodGet, "/claims/"+url.PathEscape(id), nil, &res)
	return res.Claim, err
}

func (c *Client) CreateClaim(ctx context.Context, req claims.CreateRequest) (models.Claim, error) {
	var res struct {
		Claim models.Claim `json:"claim"`
	}
	err := c.do(ctx, http.MethodPost, "/claims", req, &res)
	return res.Claim, err
}

func (c *Client) DeleteClaim(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/claims/"+url.PathEscape(id), nil, nil)
}

// Me returns the user the token was issued to.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var res struct {
		User models.User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/me", nil, &res)
	return res.User, err
}

// Subscribe connects to the change feed and calls onNotice with every notice
// received until the context is canceled or the connection is lost.
func (c *Client) Subscribe(ctx context.Context, onNotice func(models.FeedNotice)) error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return errors.New("parsing endpoint failed").
			WithTag("endpoint", c.Endpoint).
			Wrap(err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/feed"

	config, err := websocket.NewConfig(u.String(), c.Endpoint)
	if err != nil {
		return errors.New("creating feed config failed").Wrap(err)
	}
	config.Header.Set("Authorization", "Bearer "+c.Token)

	conn, err := config.DialContext(ctx)
	if err != nil {
		return errors.New("connecting to feed failed").
			WithTag("url", u.String()).
			Wrap(err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var b []byte
		if err := websocket.Message.Receive(conn, &b); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.New("receiving notice failed").Wrap(err)
		}

		var notice models.FeedNotice
		if err := json.Unmarshal(b, &notice); err != nil {
			return errors.New("decoding notice failed").Wrap(err)
		}
		onNotice(notice)
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.New("encoding request failed").Wrap(err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint+path, body)
	if err != nil {
		return errors.New("creating request failed").Wrap(err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return errors.New("sending request failed").
			WithTag("method", method).
			WithTag("path", path).
			Wrap(err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.New("reading response failed").Wrap(err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return responseError(method, path, res.StatusCode, b)
	}

	if out == nil || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.New("decoding response failed").Wrap(err)
	}
	return nil
}

func responseError(method, path string, status int, body []byte) error {
	var res splathttp.ErrorResponse
	json.Unmarshal(body, &res)

	msg := res.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	errType := res.Type
	if errType == "" {
		errType = statusTypes[status]
	}

	err := errors.New(msg).
		WithTag("status", status).
		WithTag("method", method).
		WithTag("path", path)
	if errType == "" {
		return err
	}
	return err.WithType(errType)
}

var statusTypes = map[int]string{
	http.StatusBadRequest:      models.ErrTypeInvalidRequest,
	http.StatusUnauthorized:    models.ErrTypeUnauthorized,
	http.StatusTooManyRequests: models.ErrTypeRateLimited,
}
