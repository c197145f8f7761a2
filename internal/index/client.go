// Package index implements the package index upload client. Artifacts
// are published with a single multipart POST (the legacy file-upload
// API shape) authenticated with basic auth. There are no retries:
// either the artifact is fully uploaded or the step fails.
package index

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-releaser/internal/wheel"
)

var (
	ErrBaseURLMustBeSet = errors.New("index base URL must be set")
	// ErrDuplicate is returned when the index rejects the upload
	// because the version already exists. Re-running a pipeline for a
	// tag that was already published is expected to fail here.
	ErrDuplicate = errors.New("artifact version already exists on the index")
)

const defaultTimeout = 5 * time.Minute

// Client uploads wheel artifacts to a package index.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
}

// ClientOption configures the client.
type ClientOption func(c *Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates an upload client for the index at baseURL.
func NewClient(baseURL string, creds Credentials, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLMustBeSet
	}

	client := &Client{
		baseURL:    baseURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Upload publishes the artifact. The request carries the legacy upload
// form fields plus the wheel content; credentials travel only in the
// Authorization header, never in the URL.
func (c *Client) Upload(ctx context.Context, artifact *wheel.Artifact) error {
	body, contentType, err := c.buildForm(artifact)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, body)
	if err != nil {
		return errors.Wrap(err, "unable to build upload request")
	}
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth(c.creds.Username, c.creds.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "unable to upload artifact")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read a bounded amount of the body: index error pages can be
	// arbitrarily large and the useful message is at the start.
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(detail))

	if isDuplicate(resp.StatusCode, message) {
		return errors.Wrapf(ErrDuplicate, "%s %s", resp.Status, message)
	}

	return errors.Errorf("upload failed: %s: %s", resp.Status, message)
}

// isDuplicate recognizes the index's duplicate-version rejection. The
// exact status varies across index implementations (400, 403 or 409),
// so the body is checked as well.
func isDuplicate(statusCode int, message string) bool {
	if statusCode == http.StatusConflict {
		return true
	}
	if statusCode != http.StatusBadRequest && statusCode != http.StatusForbidden {
		return false
	}

	lowered := strings.ToLower(message)

	return strings.Contains(lowered, "already exists") || strings.Contains(lowered, "duplicate")
}

func (c *Client) buildForm(artifact *wheel.Artifact) (*bytes.Buffer, string, error) {
	var buffer bytes.Buffer
	form := multipart.NewWriter(&buffer)

	fields := map[string]string{
		":action":          "file_upload",
		"protocol_version": "1",
		"name":             artifact.Name,
		"version":          artifact.Version,
		"filetype":         "bdist_wheel",
		"pyversion":        "py3",
		"metadata_version": "2.1",
		"sha256_digest":    artifact.SHA256,
	}
	for field, value := range fields {
		err := form.WriteField(field, value)
		if err != nil {
			return nil, "", errors.Wrapf(err, "unable to write form field %s", field)
		}
	}

	file, err := os.Open(artifact.Path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "unable to open %s", artifact.Path)
	}
	defer file.Close()

	part, err := form.CreateFormFile("content", filepath.Base(artifact.Path))
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to create form file")
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return nil, "", errors.Wrapf(err, "unable to read %s", artifact.Path)
	}

	err = form.Close()
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to finalize form")
	}

	return &buffer, form.FormDataContentType(), nil
}
