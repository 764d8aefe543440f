package spacetraveling

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/eringen/spacetraveling/cms"
)

const (
	maxBannerWidth = 1200
	minBannerWidth = 160
	jpegQuality    = 80
	maxBannerSize  = 10 << 20 // 10MB
)

// resizeBanner decodes an image from src, scales it down to width when it
// is wider, and encodes it as JPEG.
func resizeBanner(src io.Reader, width int) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > width {
		newH := h * width / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func bannerWidth(q string) int {
	w, err := strconv.Atoi(q)
	if err != nil || w <= 0 || w > maxBannerWidth {
		return maxBannerWidth
	}
	if w < minBannerWidth {
		return minBannerWidth
	}
	return w
}

// handleBanner serves a resized copy of a post's banner. Only the URL stored
// on the post is fetched.
func (a *App) handleBanner(c echo.Context) error {
	ctx := c.Request().Context()
	ref := previewRef(c)
	src, err := a.Posts.BannerURL(ctx, c.Param("slug"), ref)
	if errors.Is(err, cms.ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	u, err := url.Parse(src)
	if src == "" || err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return echo.ErrNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := a.images.Do(req)
	if err != nil {
		slog.Warn("banner fetch failed", "url", u.Redacted(), "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "banner unavailable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Warn("banner fetch failed", "url", u.Redacted(), "status", resp.StatusCode)
		return echo.NewHTTPError(http.StatusBadGateway, "banner unavailable")
	}

	data, err := resizeBanner(io.LimitReader(resp.Body, maxBannerSize), bannerWidth(c.QueryParam("w")))
	if err != nil {
		slog.Warn("banner resize failed", "url", u.Redacted(), "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "banner unavailable")
	}
	if ref != "" {
		noStore(c)
	} else {
		c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
