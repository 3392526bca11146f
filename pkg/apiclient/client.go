// Package apiclient calls the reading club API over HTTP. Every endpoint has
// exactly one method; nothing is retried, cached or batched.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
)

const defaultTimeout = 10 * time.Second

// Client calls the API service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents an API error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs an API client. A non-positive timeout uses the default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Login(ctx context.Context, username, password string) (domain.User, error) {
	var user domain.User
	err := c.postJSON(ctx, "/login/", domain.LoginRequest{Username: username, Password: password}, &user)
	return user, err
}

func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	var user domain.User
	err := c.postJSON(ctx, "/users/", req, &user)
	return user, err
}

func (c *Client) ListUsers(ctx context.Context, skip, limit int) ([]domain.User, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	var users []domain.User
	err := c.get(ctx, "/users/?"+q.Encode(), &users)
	return users, err
}

func (c *Client) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var user domain.User
	err := c.get(ctx, fmt.Sprintf("/users/%d", id), &user)
	return user, err
}

func (c *Client) CreateCohort(ctx context.Context, req domain.CreateCohortRequest) (domain.Cohort, error) {
	var cohort domain.Cohort
	err := c.postJSON(ctx, "/cohorts/", req, &cohort)
	return cohort, err
}

func (c *Client) ListCohorts(ctx context.Context) ([]domain.Cohort, error) {
	var cohorts []domain.Cohort
	err := c.get(ctx, "/cohorts/", &cohorts)
	return cohorts, err
}

func (c *Client) GetCohort(ctx context.Context, id int64) (domain.Cohort, error) {
	var cohort domain.Cohort
	err := c.get(ctx, fmt.Sprintf("/cohorts/%d", id), &cohort)
	return cohort, err
}

// UploadDocument sends a PDF as the multipart field "file".
func (c *Client) UploadDocument(ctx context.Context, cohortID int64, filename string, r io.Reader) (domain.UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return domain.UploadResult{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return domain.UploadResult{}, err
	}
	if err := writer.Close(); err != nil {
		return domain.UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/cohorts/%d/upload-pdf", c.baseURL, cohortID), body)
	if err != nil {
		return domain.UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var res domain.UploadResult
	if err := c.do(req, &res); err != nil {
		return domain.UploadResult{}, err
	}
	return res, nil
}

func (c *Client) JoinCohort(ctx context.Context, userID, cohortID int64) (domain.Membership, error) {
	var membership domain.Membership
	err := c.postJSON(ctx, "/cohort-members/", domain.JoinRequest{UserID: userID, CohortID: cohortID}, &membership)
	return membership, err
}

func (c *Client) UserCohorts(ctx context.Context, userID int64) ([]domain.Cohort, error) {
	var cohorts []domain.Cohort
	err := c.get(ctx, fmt.Sprintf("/cohort-members/user/%d", userID), &cohorts)
	return cohorts, err
}

func (c *Client) CohortMembers(ctx context.Context, cohortID int64) ([]domain.User, error) {
	var users []domain.User
	err := c.get(ctx, fmt.Sprintf("/cohort-members/cohort/%d", cohortID), &users)
	return users, err
}

func (c *Client) CreatePrivateNote(ctx context.Context, req domain.CreateNoteRequest) (domain.Note, error) {
	var note domain.Note
	err := c.postJSON(ctx, "/private-notes/", req, &note)
	return note, err
}

// PrivateNotes returns the caller's notes; the server scopes them to the author.
func (c *Client) PrivateNotes(ctx context.Context, userID, cohortID int64) ([]domain.Note, error) {
	var notes []domain.Note
	err := c.get(ctx, fmt.Sprintf("/private-notes/user/%d/cohort/%d", userID, cohortID), &notes)
	return notes, err
}

func (c *Client) CreatePublicNote(ctx context.Context, req domain.CreateNoteRequest) (domain.Note, error) {
	var note domain.Note
	err := c.postJSON(ctx, "/public-notes/", req, &note)
	return note, err
}

func (c *Client) PublicNotes(ctx context.Context, cohortID int64) ([]domain.Note, error) {
	var notes []domain.Note
	err := c.get(ctx, fmt.Sprintf("/public-notes/cohort/%d", cohortID), &notes)
	return notes, err
}

func (c *Client) PostChatMessage(ctx context.Context, req domain.CreateChatMessageRequest) (domain.ChatMessage, error) {
	var msg domain.ChatMessage
	err := c.postJSON(ctx, "/chat-messages/", req, &msg)
	return msg, err
}

func (c *Client) ChatMessages(ctx context.Context, cohortID int64) ([]domain.ChatMessage, error) {
	var msgs []domain.ChatMessage
	err := c.get(ctx, fmt.Sprintf("/chat-messages/cohort/%d", cohortID), &msgs)
	return msgs, err
}

func (c *Client) AdminStats(ctx context.Context, userID int64) (domain.AdminStats, error) {
	var stats domain.AdminStats
	err := c.get(ctx, fmt.Sprintf("/admin/stats?user_id=%d", userID), &stats)
	return stats, err
}

func (c *Client) CohortActivity(ctx context.Context, userID, cohortID int64) (domain.CohortActivity, error) {
	var activity domain.CohortActivity
	err := c.get(ctx, fmt.Sprintf("/admin/cohorts/%d/activity?user_id=%d", cohortID, userID), &activity)
	return activity, err
}

// DocumentURL builds the asset URL of a stored document from the path the
// API reported. Both slash and backslash separators are accepted.
func (c *Client) DocumentURL(path string) string {
	name := DocumentFilename(path)
	if name == "" {
		return ""
	}
	return c.baseURL + "/uploads/" + url.PathEscape(name)
}

// DocumentFilename returns the last path segment of p.
func DocumentFilename(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	return p
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := strings.TrimSpace(errResp.Detail)
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
