package streetview

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

const maxImageBytes = 8 << 20

// Downloader fetches static images. It implements ports.ImageDownloader.
type Downloader struct {
	client  *fasthttp.Client
	timeout time.Duration
}

func NewDownloader(timeout time.Duration) *Downloader {
	return &Downloader{
		client: &fasthttp.Client{
			Name:                "urbanbuzz-explorer",
			MaxResponseBodySize: maxImageBytes,
		},
		timeout: timeout,
	}
}

// Download returns the body and content type of a 200 image response.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline := time.Now().Add(d.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := d.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, "", fmt.Errorf("download image: status %d", resp.StatusCode())
	}

	contentType := string(resp.Header.ContentType())
	if contentType == "" {
		contentType = "image/jpeg"
	}
	body := append([]byte(nil), resp.Body()...)
	return body, contentType, nil
}
