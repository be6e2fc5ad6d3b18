package drawdata

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/unixpickle/essentials"
)

// Fetch reads the resource at a location.
//
// Locations with an http or https scheme are requested
// with the client (or http.DefaultClient if it is nil),
// and any non-2xx response is an error.
// Every other location, including file:// URLs, is read
// from the local filesystem.
func Fetch(ctx context.Context, client *http.Client, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return fetchHTTP(ctx, client, location)
	}
	path := location
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("fetch "+location, err)
	}
	return data, nil
}

func fetchHTTP(ctx context.Context, client *http.Client, location string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, essentials.AddCtx("fetch "+location, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, essentials.AddCtx("fetch "+location, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status: %s", location, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, essentials.AddCtx("fetch "+location, err)
	}
	return data, nil
}

// FetchImage fetches and decodes an image.
func FetchImage(ctx context.Context, client *http.Client, location string) (image.Image, error) {
	data, err := Fetch(ctx, client, location)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, essentials.AddCtx("decode "+location, err)
	}
	return img, nil
}
