// Package arcgis queries hosted tables of an ArcGIS Online portal over its REST API.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
)

const (
	tokenPath = "/sharing/rest/generateToken"
	itemPath  = "/sharing/rest/content/items/"

	// tokens are renewed this long before they expire
	tokenLeeway = time.Minute
)

var errInvalidToken = errors.New("invalid token")

type (
	Config struct {
		PortalURL       string
		Username        string // anonymous access when empty
		Password        string
		TokenExpiration time.Duration
		HTTPClient      *http.Client
	}

	// Client is safe for concurrent use.
	Client struct {
		portal     string
		username   string
		password   string
		expiration time.Duration
		http       *rest.Client
		now        func() time.Time

		tokenMu      sync.Mutex // held while logging in
		token        string
		tokenExpires time.Time

		mu     sync.Mutex
		tables map[string]string // {itemID: table URL}
	}

	// Error is the error envelope of the ArcGIS REST API.
	Error struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	}

	errorResponse struct {
		Error *Error `json:"error"`
	}

	tokenResponse struct {
		errorResponse
		Token   string `json:"token"`
		Expires int64  `json:"expires"` // epoch millis
	}

	itemResponse struct {
		errorResponse
		ID   string `json:"id"`
		Type string `json:"type"`
		URL  string `json:"url"`
	}

	serviceResponse struct {
		errorResponse
		Tables []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"tables"`
	}

	queryResponse struct {
		errorResponse
		Features []struct {
			Attributes map[string]interface{} `json:"attributes"`
		} `json:"features"`
		ExceededTransferLimit bool `json:"exceededTransferLimit"`
	}
)

func (e *Error) Error() string {
	msg := fmt.Sprintf("arcgis: %d %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

func (r errorResponse) err() error {
	if r.Error == nil {
		return nil
	}
	// 498: invalid token, 499: token required
	if r.Error.Code == 498 || r.Error.Code == 499 {
		return errors.Wrap(errInvalidToken, r.Error.Error())
	}
	return r.Error
}

func NewClient(conf Config) (*Client, error) {
	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.PortalURL, "PortalURL"),
	).Check(); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(conf.PortalURL); err != nil {
		return nil, errors.Wrap(err, "parsing portal url")
	}
	if conf.TokenExpiration <= 0 {
		conf.TokenExpiration = time.Hour
	}
	httpClient := conf.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Minute}
	}
	return &Client{
		portal:     strings.TrimRight(conf.PortalURL, "/"),
		username:   conf.Username,
		password:   conf.Password,
		expiration: conf.TokenExpiration,
		http:       &rest.Client{HTTPClient: httpClient},
		now:        time.Now,
		tables:     make(map[string]string),
	}, nil
}

// Query returns the attributes of every feature of the first table of the hosted item.
func (c *Client) Query(ctx context.Context, itemID string) ([]map[string]interface{}, error) {
	features, err := c.query(ctx, itemID)
	if errors.Cause(err) == errInvalidToken {
		// the token was revoked or expired early: log in again once
		c.resetToken()
		features, err = c.query(ctx, itemID)
	}
	return features, err
}

func (c *Client) query(ctx context.Context, itemID string) ([]map[string]interface{}, error) {
	tableURL, err := c.TableURL(ctx, itemID)
	if err != nil {
		return nil, err
	}

	features := make([]map[string]interface{}, 0)
	for {
		params := map[string]string{
			"where":          "1=1",
			"outFields":      "*",
			"returnGeometry": "false",
			"resultOffset":   strconv.Itoa(len(features)),
		}
		var res queryResponse
		if err := c.get(ctx, tableURL+"/query", params, &res); err != nil {
			return nil, errors.Wrapf(err, "querying %s", tableURL)
		}
		for _, f := range res.Features {
			features = append(features, f.Attributes)
		}
		if !res.ExceededTransferLimit || len(res.Features) == 0 {
			return features, nil
		}
	}
}

// TableURL resolves the URL of the first table of a hosted feature service item.
// Resolved URLs are kept for the lifetime of the client.
func (c *Client) TableURL(ctx context.Context, itemID string) (string, error) {
	c.mu.Lock()
	tableURL, ok := c.tables[itemID]
	c.mu.Unlock()
	if ok {
		return tableURL, nil
	}

	var item itemResponse
	if err := c.get(ctx, c.portal+itemPath+url.PathEscape(itemID), nil, &item); err != nil {
		return "", errors.Wrapf(err, "getting item %s", itemID)
	}
	if item.URL == "" {
		return "", errors.Errorf("item %s has no service url", itemID)
	}

	serviceURL := strings.TrimRight(item.URL, "/")
	var svc serviceResponse
	if err := c.get(ctx, serviceURL, nil, &svc); err != nil {
		return "", errors.Wrapf(err, "describing service of item %s", itemID)
	}
	if len(svc.Tables) == 0 {
		return "", errors.Errorf("item %s has no table", itemID)
	}
	tableURL = serviceURL + "/" + strconv.Itoa(svc.Tables[0].ID)

	c.mu.Lock()
	c.tables[itemID] = tableURL
	c.mu.Unlock()
	return tableURL, nil
}

// Token returns a valid token, generating a new one when needed.
// It returns an empty token for anonymous clients.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.username == "" {
		return "", nil
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" && c.now().Add(tokenLeeway).Before(c.tokenExpires) {
		return c.token, nil
	}

	form := url.Values{
		"username":   {c.username},
		"password":   {c.password},
		"client":     {"referer"},
		"referer":    {c.portal},
		"expiration": {strconv.Itoa(int(c.expiration / time.Minute))},
		"f":          {"json"},
	}
	req := rest.Request{
		Method:  rest.Post,
		BaseURL: c.portal + tokenPath,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    []byte(form.Encode()),
	}
	var res tokenResponse
	if err := c.send(ctx, req, &res); err != nil {
		return "", errors.Wrap(err, "generating token")
	}
	if res.Token == "" {
		return "", errors.New("generating token: empty token")
	}
	c.token = res.Token
	c.tokenExpires = time.Unix(0, res.Expires*int64(time.Millisecond))
	return c.token, nil
}

func (c *Client) resetToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, v interface{ err() error }) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}
	query := map[string]string{"f": "json"}
	for k, val := range params {
		query[k] = val
	}
	if token != "" {
		query["token"] = token
	}
	return c.send(ctx, rest.Request{
		Method:      rest.Get,
		BaseURL:     endpoint,
		Headers:     map[string]string{"Referer": c.portal},
		QueryParams: query,
	}, v)
}

func (c *Client) send(ctx context.Context, req rest.Request, v interface{ err() error }) error {
	res, err := c.http.SendWithContext(ctx, req)
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("%s %s: status %d", req.Method, req.BaseURL, res.StatusCode)
	}
	if err := json.Unmarshal([]byte(res.Body), v); err != nil {
		return errors.Wrapf(err, "decoding %s response", req.BaseURL)
	}
	return v.err()
}
