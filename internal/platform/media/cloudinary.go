package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/khojghar/khojghar-api/internal/domain"
)

// CloudinaryClient uploads images through Cloudinary's unsigned upload
// endpoint and returns the secure URL.
type CloudinaryClient struct {
	uploadURL    string
	uploadPreset string
	folder       string
	httpClient   *http.Client
}

func NewCloudinary(cloudName, uploadPreset, folder string) *CloudinaryClient {
	return &CloudinaryClient{
		uploadURL:    fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", cloudName),
		uploadPreset: uploadPreset,
		folder:       folder,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// NewCloudinaryAt points the client at a custom endpoint; used by tests.
func NewCloudinaryAt(uploadURL, uploadPreset, folder string) *CloudinaryClient {
	c := NewCloudinary("unused", uploadPreset, folder)
	c.uploadURL = uploadURL
	return c
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
}

func (c *CloudinaryClient) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: only image files are allowed", domain.ErrInvalidInput)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("upload_preset", c.uploadPreset); err != nil {
		return "", err
	}
	if c.folder != "" {
		if err := mw.WriteField("folder", c.folder); err != nil {
			return "", err
		}
	}
	if err := mw.WriteField("public_id", uuid.NewString()); err != nil {
		return "", err
	}

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media store returned %d", res.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.SecureURL != "" {
		return out.SecureURL, nil
	}
	if out.URL != "" {
		return out.URL, nil
	}
	return "", fmt.Errorf("media store response missing url")
}

var _ Uploader = (*CloudinaryClient)(nil)
