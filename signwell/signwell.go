// Package signwell is the client for the SignWell e-signature API.
//
// API reference: https://developers.signwell.com/reference/
package signwell

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://www.signwell.com/api/v1/"
	Provider       = "signwell"

	maxResponseBytes = 10 << 20
)

var ErrNoDocumentID = errors.New("signwell response carries no document id")

// File is a document to be signed.
type File struct {
	Name    string
	Content []byte
}

type Recipient struct {
	Email string
	Name  string
}

// Response is the provider's raw answer to a signature request. Interpreting
// it is up to the caller.
type Response struct {
	StatusCode int
	Body       []byte
}

// Created reports whether the provider accepted the request.
func (r *Response) Created() bool {
	return r != nil && r.StatusCode == http.StatusCreated
}

// DocumentID extracts the provider's document (signature request) id.
func (r *Response) DocumentID() (string, error) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return "", fmt.Errorf("decode signwell response: %w", err)
	}
	if body.ID == "" {
		return "", ErrNoDocumentID
	}
	return body.ID, nil
}

type Options struct {
	BaseURL    string
	APIKey     string
	WebhookKey string
	TestMode   bool
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	apiKey     string
	webhookKey string
	testMode   bool
	httpClient *http.Client
}

func New(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		webhookKey: opts.WebhookKey,
		testMode:   opts.TestMode,
		httpClient: httpClient,
	}
}

type fileRequest struct {
	Name       string `json:"name"`
	FileBase64 string `json:"file_base64"`
}

type recipientRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type documentRequest struct {
	TestMode          bool               `json:"test_mode"`
	Draft             bool               `json:"draft"`
	Subject           string             `json:"subject"`
	Message           string             `json:"message"`
	WithSignaturePage bool               `json:"with_signature_page"`
	Reminders         bool               `json:"reminders"`
	ApplySigningOrder bool               `json:"apply_signing_order"`
	EmbeddedSigning   bool               `json:"embedded_signing"`
	TextTags          bool               `json:"text_tags"`
	AllowDecline      bool               `json:"allow_decline"`
	AllowReassign     bool               `json:"allow_reassign"`
	Files             []fileRequest      `json:"files"`
	Recipients        []recipientRequest `json:"recipients"`
}

// RequestSignatures submits files to be signed by every recipient. The raw
// response is returned for any HTTP status; only transport failures produce
// an error.
func (c *Client) RequestSignatures(ctx context.Context, files []File, recipients []Recipient, subject, message string) (*Response, error) {
	req := documentRequest{
		TestMode:          c.testMode,
		Subject:           subject,
		Message:           message,
		WithSignaturePage: true,
		Reminders:         true,
		AllowDecline:      true,
		Files:             make([]fileRequest, 0, len(files)),
		Recipients:        make([]recipientRequest, 0, len(recipients)),
	}
	for _, f := range files {
		req.Files = append(req.Files, fileRequest{
			Name:       f.Name,
			FileBase64: base64.StdEncoding.EncodeToString(f.Content),
		})
	}
	for i, r := range recipients {
		req.Recipients = append(req.Recipients, recipientRequest{
			ID:    strconv.Itoa(i + 1),
			Name:  r.Name,
			Email: r.Email,
		})
	}
	return c.do(ctx, http.MethodPost, "documents/", req)
}

// Document is the subset of the provider's document resource used for
// reconciliation.
type Document struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (d Document) Completed() bool {
	return strings.EqualFold(d.Status, "completed")
}

func (d Document) Expired() bool {
	return strings.EqualFold(d.Status, "expired")
}

func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	resp, err := c.do(ctx, http.MethodGet, "documents/"+id+"/", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signwell get document %s: unexpected status %d", id, resp.StatusCode)
	}
	var doc Document
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("decode signwell document: %w", err)
	}
	return &doc, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode signwell request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build signwell request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signwell %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read signwell response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// VerifyWebhookSignature checks an event hash: hex HMAC-SHA256 keyed by the
// webhook key over "{type}@{timestamp}". Missing fields or an unset key are
// never authentic.
func (c *Client) VerifyWebhookSignature(eventType, eventTimestamp, providedHash string) bool {
	if c.webhookKey == "" || eventType == "" || eventTimestamp == "" || providedHash == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimSpace(providedHash))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.webhookKey))
	_, _ = mac.Write([]byte(eventType + "@" + eventTimestamp))
	return hmac.Equal(mac.Sum(nil), provided)
}

// Sign computes the event hash the provider attaches to webhook events.
func Sign(webhookKey, eventType, eventTimestamp string) string {
	mac := hmac.New(sha256.New, []byte(webhookKey))
	_, _ = mac.Write([]byte(eventType + "@" + eventTimestamp))
	return hex.EncodeToString(mac.Sum(nil))
}
