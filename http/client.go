package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nasdf/docproxy/codec"
	"github.com/nasdf/docproxy/transport"
)

// Client is a transport that sends every call to a remote Handler.
type Client struct {
	base   string
	client *http.Client
}

var _ transport.Transport = (*Client)(nil)

// NewClient returns a client for the handler served at base.
//
// The default http client is used when client is nil.
func NewClient(base string, client *http.Client) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote url %q: scheme must be http or https", base)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		base:   strings.TrimSuffix(base, "/"),
		client: client,
	}, nil
}

func (c *Client) Get(ctx context.Context, ref transport.Ref) (*transport.Snapshot, error) {
	body, err := c.do(ctx, http.MethodGet, docPath(ref), nil)
	if err != nil {
		return nil, err
	}
	return codec.NewDecoder(bytes.NewReader(body)).DecodeSnapshot()
}

func (c *Client) Create(ctx context.Context, collection string, id string) (transport.Ref, error) {
	path := "/collections/" + escapePath(collection)
	if id != "" {
		path += "?id=" + url.QueryEscape(id)
	}
	body, err := c.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return transport.Ref{}, err
	}
	p, err := codec.NewDecoder(bytes.NewReader(body)).DecodeString()
	if err != nil {
		return transport.Ref{}, err
	}
	return transport.NewRef(p)
}

func (c *Client) Set(ctx context.Context, ref transport.Ref, data transport.Payload) error {
	return c.write(ctx, http.MethodPut, ref, data)
}

func (c *Client) Update(ctx context.Context, ref transport.Ref, data transport.Payload) error {
	return c.write(ctx, http.MethodPatch, ref, data)
}

func (c *Client) Delete(ctx context.Context, ref transport.Ref) error {
	_, err := c.do(ctx, http.MethodDelete, docPath(ref), nil)
	return err
}

func (c *Client) write(ctx context.Context, method string, ref transport.Ref, data transport.Payload) error {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	if err := enc.Encode(data); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := c.do(ctx, method, docPath(ref), &buf)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", ContentType)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", method, path, transport.ErrNotFound)
	case res.StatusCode >= 300:
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, res.Status, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func docPath(ref transport.Ref) string {
	return "/docs/" + escapePath(ref.Path())
}

// escapePath escapes each segment of a slash separated path.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
