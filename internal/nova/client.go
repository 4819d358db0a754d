package nova

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// API is the full capability set of the nova service used by platesolve.
// It is implemented by *Client and can be faked in tests.
type API interface {
	Login(ctx context.Context) (SessionToken, error)
	Submit(ctx context.Context, path string) (SubmitResult, error)
	SubmissionStatus(ctx context.Context, submissionID int64) (SubmissionStatus, error)
	JobInfo(ctx context.Context, jobID int64) (JobInfo, error)
	Annotations(ctx context.Context, jobID int64) ([]Annotation, error)
	RetrieveResult(ctx context.Context, jobID int64, artifact ArtifactType) ([]byte, error)
	Close() error
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

const (
	// DefaultBaseURL is the public astrometry.net instance.
	DefaultBaseURL   = "https://nova.astrometry.net/"
	defaultUserAgent = "platesolve/0.1"
	defaultTimeout   = 2 * time.Minute
)

// Options configure a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client talks to the nova HTTP API. The underlying http.Client is created on
// first use and released by Close.
type Client struct {
	baseURL   *url.URL
	apiKey    string
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	http    *http.Client
	session SessionToken
}

// NewClient builds a Client. No network activity happens until Login.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   base,
		apiKey:    strings.TrimSpace(opts.APIKey),
		userAgent: defaultUserAgent,
		timeout:   timeout,
		logger:    logger.Named("nova"),
	}, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Session returns the current session token, or "" before Login.
func (c *Client) Session() SessionToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Login exchanges the API key for a session token and keeps it for later calls.
func (c *Client) Login(ctx context.Context) (SessionToken, error) {
	if c.apiKey == "" {
		return "", &AuthError{Message: "api key is empty"}
	}
	var payload loginResponse
	if err := c.postForm(ctx, "api/login", map[string]string{"apikey": c.apiKey}, &payload); err != nil {
		return "", &AuthError{StatusCode: statusCode(err), Err: err}
	}
	if !payload.ok() || payload.Session == "" {
		return "", &AuthError{Message: payload.detail()}
	}

	token := SessionToken(payload.Session)
	c.mu.Lock()
	c.session = token
	c.mu.Unlock()
	c.logger.Info("logged in", zap.String("base_url", c.baseURL.String()))
	return token, nil
}

type uploadRequest struct {
	Session            string `json:"session"`
	PubliclyVisible    string `json:"publicly_visible"`
	AllowModifications string `json:"allow_modifications"`
	AllowCommercialUse string `json:"allow_commercial_use"`
}

type uploadResponse struct {
	statusResponse
	SubmissionID int64  `json:"subid"`
	Hash         string `json:"hash"`
}

// Submit uploads the image at path as a new submission. The file is streamed
// into the multipart body.
func (c *Client) Submit(ctx context.Context, path string) (SubmitResult, error) {
	session := c.Session()
	if session == "" {
		return SubmitResult{}, &UploadError{Path: path, Err: ErrNotLoggedIn}
	}
	file, err := os.Open(path)
	if err != nil {
		return SubmitResult{}, &UploadError{Path: path, Err: err}
	}
	defer func() { _ = file.Close() }()

	meta, err := json.Marshal(uploadRequest{
		Session:            string(session),
		PubliclyVisible:    "n",
		AllowModifications: "n",
		AllowCommercialUse: "n",
	})
	if err != nil {
		return SubmitResult{}, &UploadError{Path: path, Err: fmt.Errorf("encode request: %w", err)}
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		_ = pw.CloseWithError(writeUpload(form, meta, filepath.Base(path), file))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, &url.URL{Path: "api/upload"}, pr)
	if err != nil {
		_ = pr.Close()
		return SubmitResult{}, &UploadError{Path: path, Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var payload uploadResponse
	if err := c.send(req, &payload); err != nil {
		return SubmitResult{}, &UploadError{Path: path, Err: err}
	}
	if !payload.ok() {
		return SubmitResult{}, &UploadError{Path: path, Message: payload.detail()}
	}
	c.logger.Info("image uploaded",
		zap.String("path", path),
		zap.Int64("submission_id", payload.SubmissionID))
	return SubmitResult{Status: payload.Status, SubmissionID: payload.SubmissionID, Hash: payload.Hash}, nil
}

func writeUpload(form *multipart.Writer, meta []byte, name string, file io.Reader) error {
	if err := form.WriteField("request-json", string(meta)); err != nil {
		return err
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return form.Close()
}

// SubmissionStatus fetches the processing state of a submission.
func (c *Client) SubmissionStatus(ctx context.Context, submissionID int64) (SubmissionStatus, error) {
	var payload SubmissionStatus
	rel := &url.URL{Path: "api/submissions/" + strconv.FormatInt(submissionID, 10)}
	if err := c.get(ctx, rel, &payload); err != nil {
		return SubmissionStatus{}, &TransportError{Op: "submission status", StatusCode: statusCode(err), Err: err}
	}
	return payload, nil
}

// JobInfo fetches tags, objects in field and calibration for a job.
func (c *Client) JobInfo(ctx context.Context, jobID int64) (JobInfo, error) {
	var payload JobInfo
	rel := &url.URL{Path: "api/jobs/" + strconv.FormatInt(jobID, 10) + "/info/"}
	if err := c.get(ctx, rel, &payload); err != nil {
		return JobInfo{}, &TransportError{Op: "job info", StatusCode: statusCode(err), Err: err}
	}
	return payload, nil
}

// Annotations fetches the labelled objects found in a solved job.
func (c *Client) Annotations(ctx context.Context, jobID int64) ([]Annotation, error) {
	var payload annotationsResponse
	rel := &url.URL{Path: "api/jobs/" + strconv.FormatInt(jobID, 10) + "/annotations/"}
	if err := c.get(ctx, rel, &payload); err != nil {
		return nil, &TransportError{Op: "job annotations", StatusCode: statusCode(err), Err: err}
	}
	return payload.Annotations, nil
}

// RetrieveResult downloads one result file of a job. Unknown artifact types
// are rejected by the service, not here.
func (c *Client) RetrieveResult(ctx context.Context, jobID int64, artifact ArtifactType) ([]byte, error) {
	rel := &url.URL{Path: string(artifact) + "/" + strconv.FormatInt(jobID, 10)}
	req, err := c.newRequest(ctx, http.MethodGet, rel, nil)
	if err != nil {
		return nil, &TransportError{Op: "retrieve " + string(artifact), Err: err}
	}
	var body []byte
	if err := c.sendRaw(req, func(r io.Reader) error {
		var readErr error
		body, readErr = io.ReadAll(r)
		return readErr
	}); err != nil {
		return nil, &TransportError{Op: "retrieve " + string(artifact), StatusCode: statusCode(err), Err: err}
	}
	return body, nil
}

// Close forgets the session and releases pooled connections. It is safe to
// call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http != nil {
		c.http.CloseIdleConnections()
		c.http = nil
	}
	c.session = ""
	return nil
}

func (c *Client) httpClient() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.http == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		c.http = &http.Client{Timeout: c.timeout, Transport: transport}
	}
	return c.http
}

func (c *Client) postForm(ctx context.Context, path string, requestJSON any, dest any) error {
	encoded, err := json.Marshal(requestJSON)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	form := url.Values{}
	form.Set("request-json", string(encoded))

	req, err := c.newRequest(ctx, http.MethodPost, &url.URL{Path: path}, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req, dest)
}

func (c *Client) get(ctx context.Context, rel *url.URL, dest any) error {
	req, err := c.newRequest(ctx, http.MethodGet, rel, nil)
	if err != nil {
		return err
	}
	return c.send(req, dest)
}

func (c *Client) newRequest(ctx context.Context, method string, rel *url.URL, body io.Reader) (*http.Request, error) {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func (c *Client) send(req *http.Request, dest any) error {
	req.Header.Set("Accept", "application/json")
	return c.sendRaw(req, func(r io.Reader) error {
		if dest == nil {
			return nil
		}
		if err := json.NewDecoder(r).Decode(dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) sendRaw(req *http.Request, read func(io.Reader) error) error {
	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("api request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{path: req.URL.Path, code: resp.StatusCode}
	}
	return read(resp.Body)
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse base url %q: missing host", raw)
	}
	path := strings.TrimSuffix(u.Path, "/")
	path = strings.TrimSuffix(path, "/api")
	u.Path = path + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
