// Package cloudinary talks to the Cloudinary HTTP API for image hosting.
package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/karyatek/storefront/internal/media/storage"
	apperrors "github.com/karyatek/storefront/pkg/errors"
)

// Doer executes HTTP requests. Satisfied by httpclient.CircuitBreakerClient.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config holds Cloudinary account credentials.
type Config struct {
	BaseURL   string
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Client implements storage.Storage against the Cloudinary API.
type Client struct {
	cfg  Config
	http Doer
	now  func() time.Time
}

// New creates a Cloudinary storage client.
func New(cfg Config, doer Doer) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cloudinary.com"
	}
	return &Client{cfg: cfg, http: doer, now: time.Now}
}

type uploadResponse struct {
	PublicID string `json:"public_id"`
	Format   string `json:"format"`
	Bytes    int64  `json:"bytes"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	URL      string `json:"secure_url"`
}

// Upload pushes an image via the signed upload endpoint.
func (c *Client) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if c.cfg.Folder != "" {
		params["folder"] = c.cfg.Folder
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range params {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	if err := mw.WriteField("api_key", c.cfg.APIKey); err != nil {
		return nil, fmt.Errorf("write api key field: %w", err)
	}
	if err := mw.WriteField("signature", c.sign(params)); err != nil {
		return nil, fmt.Errorf("write signature field: %w", err)
	}
	part, err := mw.CreateFormFile("file", input.FileName)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(input.Data); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("image/upload"), &body)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("upload", resp)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &storage.UploadResult{
		PublicID: out.PublicID,
		URL:      out.URL,
		Format:   out.Format,
		Bytes:    out.Bytes,
		Width:    out.Width,
		Height:   out.Height,
	}, nil
}

// Delete removes the image with the given public id.
func (c *Client) Delete(ctx context.Context, publicID string) error {
	params := map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}

	form := make([]string, 0, len(params)+2)
	for k, v := range params {
		form = append(form, k+"="+v)
	}
	form = append(form, "api_key="+c.cfg.APIKey, "signature="+c.sign(params))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("image/destroy"), strings.NewReader(strings.Join(form, "&")))
	if err != nil {
		return fmt.Errorf("create destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("destroy image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError("destroy", resp)
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode destroy response: %w", err)
	}
	if out.Result == "not found" {
		return apperrors.NotFound("media asset", publicID)
	}
	if out.Result != "ok" {
		return fmt.Errorf("destroy image %q: result %q", publicID, out.Result)
	}
	return nil
}

type usageResponse struct {
	Storage struct {
		Usage int64 `json:"usage"`
		Limit int64 `json:"limit"`
	} `json:"storage"`
	Credits struct {
		Usage float64 `json:"usage"`
		Limit float64 `json:"limit"`
	} `json:"credits"`
}

// Usage fetches the account's consumption from the admin API.
func (c *Client) Usage(ctx context.Context) (*storage.Usage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("usage"), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create usage request: %w", err)
	}
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch usage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("usage", resp)
	}

	var out usageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode usage response: %w", err)
	}
	return &storage.Usage{
		StorageBytes:      out.Storage.Usage,
		StorageLimitBytes: out.Storage.Limit,
		CreditsUsed:       out.Credits.Usage,
		CreditsLimit:      out.Credits.Limit,
	}, nil
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/v1_1/%s/%s", strings.TrimSuffix(c.cfg.BaseURL, "/"), c.cfg.CloudName, path)
}

// sign produces the request signature: SHA-1 over the sorted params with the
// API secret appended.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.cfg.APISecret))
	return hex.EncodeToString(sum[:])
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("cloudinary %s: status %d: %s", op, resp.StatusCode, string(body))
}
