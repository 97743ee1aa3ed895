package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/chai2010/webp"
	"github.com/go-resty/resty/v2"
)

const jpegQuality = 85

// fetchPhoto downloads a product image and returns JPEG bytes. WebP images,
// which the Bot API refuses as photos, are re-encoded.
func fetchPhoto(ctx context.Context, http *resty.Client, url string) ([]byte, error) {
	resp, err := http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode())
	}
	body := resp.Body()
	if !isWebP(body) && !strings.Contains(resp.Header().Get("Content-Type"), "webp") {
		return body, nil
	}
	img, err := webp.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode webp: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// isWebP checks the RIFF/WEBP magic bytes.
func isWebP(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WEBP"
}
