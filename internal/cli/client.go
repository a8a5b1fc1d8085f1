package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	v1 "github.com/shenikar/cityvoice/internal/handler/http/v1"
)

// ErrUnreachable - API недоступен (сеть, DNS, отказ в соединении)
var ErrUnreachable = errors.New("api unreachable")

// APIError - ответ API со статусом вне 2xx
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// Client - HTTP-клиент CityVoice API
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Do выполняет запрос. body кодируется в JSON, если это не *multipartBody
func (c *Client) Do(method, path string, body any, headers map[string]string) (*http.Response, error) {
	var (
		bodyReader  io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case *multipartBody:
		bodyReader, contentType = b.buf, b.contentType
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader, contentType = bytes.NewReader(data), "application/json"
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("x-auth-token", c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrUnreachable, c.baseURL, err)
	}
	return resp, nil
}

// decodeOrError читает тело ответа; при статусе вне 2xx возвращает *APIError
func decodeOrError(resp *http.Response, v any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var errResp v1.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if v != nil {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) call(method, path string, body, out any, headers map[string]string) error {
	resp, err := c.Do(method, path, body, headers)
	if err != nil {
		return err
	}
	return decodeOrError(resp, out)
}

func (c *Client) Register(req v1.RegisterRequest) (*v1.RegisterResponse, error) {
	var out v1.RegisterResponse
	if err := c.call(http.MethodPost, "/auth/register", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(email, password string) (string, error) {
	var out v1.LoginResponse
	if err := c.call(http.MethodPost, "/auth/login", v1.LoginRequest{Email: email, Password: password}, &out, nil); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) Me() (*v1.UserResponse, error) {
	var out v1.UserResponse
	if err := c.call(http.MethodGet, "/auth/me", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOpts - фильтры ленты
type ListOpts struct {
	Status   string
	Category string
	Sort     string
}

func (c *Client) ListIssues(opts ListOpts) ([]v1.IssueResponse, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	path := "/issues"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []v1.IssueResponse
	if err := c.call(http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

type multipartBody struct {
	buf         *bytes.Buffer
	contentType string
}

// CreateIssue отправляет форму; imagePath необязателен
func (c *Client) CreateIssue(req v1.CreateIssueRequest, imagePath string) (*v1.IssueResponse, error) {
	body, err := newIssueForm(req, imagePath)
	if err != nil {
		return nil, err
	}
	var out v1.IssueResponse
	if err := c.call(http.MethodPost, "/issues", body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func newIssueForm(req v1.CreateIssueRequest, imagePath string) (*multipartBody, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := map[string]string{
		"title":       req.Title,
		"description": req.Description,
		"category":    req.Category,
		"address":     req.Address,
	}
	if req.Latitude != nil {
		fields["latitude"] = strconv.FormatFloat(*req.Latitude, 'f', -1, 64)
	}
	if req.Longitude != nil {
		fields["longitude"] = strconv.FormatFloat(*req.Longitude, 'f', -1, 64)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}

	if imagePath != "" {
		f, err := os.Open(imagePath)
		if err != nil {
			return nil, fmt.Errorf("open image: %w", err)
		}
		defer f.Close()
		part, err := w.CreateFormFile("issueImage", filepath.Base(imagePath))
		if err != nil {
			return nil, fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, fmt.Errorf("copy image: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}
	return &multipartBody{buf: buf, contentType: w.FormDataContentType()}, nil
}

func (c *Client) GetIssue(id string) (*v1.IssueResponse, error) {
	var out v1.IssueResponse
	if err := c.call(http.MethodGet, "/issues/"+url.PathEscape(id), nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus меняет статус; version > 0 отправляется в If-Match
func (c *Client) UpdateStatus(id, status string, version int64) (*v1.IssueResponse, error) {
	var headers map[string]string
	if version > 0 {
		headers = map[string]string{"If-Match": strconv.Quote(strconv.FormatInt(version, 10))}
	}
	var out v1.IssueResponse
	if err := c.call(http.MethodPut, "/issues/"+url.PathEscape(id), v1.UpdateStatusRequest{Status: status}, &out, headers); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Vote(id string) (*v1.VoteResponse, error) {
	var out v1.VoteResponse
	if err := c.call(http.MethodPost, "/issues/"+url.PathEscape(id)+"/vote", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Hotspots(precision int) ([]v1.HotspotResponse, error) {
	var out []v1.HotspotResponse
	path := "/issues/hotspots?precision=" + strconv.Itoa(precision)
	if err := c.call(http.MethodGet, path, nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}
