package dav

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittodav/pkg/query"
	"github.com/marmos91/dittodav/pkg/transport"
)

// Content reads bypass the metadata cache.

// ReadBytes returns the content of the file at path.
func (c *Client) ReadBytes(ctx context.Context, p string) ([]byte, error) {
	p = normalizePath(p)
	resp, err := c.transport.Do(ctx, http.MethodGet, p, transport.RequestOptions{})
	if err != nil {
		c.logFailure(err, p, "Failed to read file")
		return nil, &TransportError{Op: http.MethodGet, Path: p, Err: err}
	}
	return resp.Body, nil
}

// ReadString returns the content of the file at path as a string.
func (c *Client) ReadString(ctx context.Context, p string) (string, error) {
	data, err := c.ReadBytes(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadJSON decodes the JSON file at path into v.
func (c *Client) ReadJSON(ctx context.Context, p string, v any) error {
	data, err := c.ReadBytes(ctx, p)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.logFailure(err, p, "Failed to decode JSON file")
		return fmt.Errorf("decode %q: %w", p, err)
	}
	return nil
}

// ReadDocument parses the XML file at path.
func (c *Client) ReadDocument(ctx context.Context, p string) (*query.Document, error) {
	data, err := c.ReadBytes(ctx, p)
	if err != nil {
		return nil, err
	}
	doc, err := query.Parse(data)
	if err != nil {
		c.logFailure(err, p, "Failed to parse XML file")
		return nil, fmt.Errorf("parse %q: %w", p, err)
	}
	return doc, nil
}

// DownloadFile writes the file at remote to the local path. The local file
// is replaced atomically; on failure it is left untouched.
func (c *Client) DownloadFile(ctx context.Context, remote, local string) error {
	data, err := c.ReadBytes(ctx, remote)
	if err != nil {
		return err
	}

	dir := filepath.Dir(local)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".dittodav-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, local); err != nil {
		return fmt.Errorf("rename to %s: %w", local, err)
	}

	c.log.WithField("path", normalizePath(remote)).WithField("local", local).Debug("File downloaded")
	return nil
}

// SupportedMethods returns the methods the server advertises in the Allow
// header of an OPTIONS response on the root.
func (c *Client) SupportedMethods(ctx context.Context) ([]string, error) {
	resp, err := c.transport.Do(ctx, http.MethodOptions, "", transport.RequestOptions{})
	if err != nil {
		c.logFailure(err, "", "Failed to query supported methods")
		return nil, &TransportError{Op: http.MethodOptions, Path: "", Err: err}
	}

	var methods []string
	for _, m := range strings.Split(resp.Header.Get("Allow"), ",") {
		if m = strings.TrimSpace(m); m != "" {
			methods = append(methods, m)
		}
	}
	return methods, nil
}
