package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/splitcart/internal/notify"
	"github.com/dukerupert/splitcart/internal/split"
)

const resendURL = "https://api.resend.com/emails"

// Client sends transactional mail through the Resend API.
type Client struct {
	apiKey      string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
	backoffBase time.Duration
	maxRetries  uint64
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithRetry sets the exponential backoff base and the number of retries
// after the first attempt.
func WithRetry(base time.Duration, maxRetries uint64) Option {
	return func(cl *Client) {
		cl.backoffBase = base
		cl.maxRetries = maxRetries
	}
}

func NewClient(apiKey, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		fromEmail:   fromEmail,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		backoffBase: 500 * time.Millisecond,
		maxRetries:  3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type resendEmail struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// SendListReady tells a recipient that every ticket on a list is paid.
func (c *Client) SendListReady(ctx context.Context, to string, n notify.ListReady) error {
	subject := "A ticket is ready to be resolved"
	if n.ListName != "" {
		subject = fmt.Sprintf("%s ticket is ready to be resolved", n.ListName)
	}
	total := split.FormatMoney(n.Total)

	var text, body strings.Builder
	fmt.Fprintf(&body, "<h2>%s</h2>", html.EscapeString(subject))
	if n.ListName != "" {
		fmt.Fprintf(&body, "<p><strong>List:</strong> %s</p>", html.EscapeString(n.ListName))
		fmt.Fprintf(&text, "List: %s\n", n.ListName)
	}
	fmt.Fprintf(&body, "<p><strong>List ID:</strong> %d</p>", n.ListID)
	fmt.Fprintf(&body, "<p><strong>Total:</strong> %s</p>", total)
	fmt.Fprintf(&text, "List ID: %d\nTotal: %s\n", n.ListID, total)
	body.WriteString("<p>Open your app to review and resolve this ticket.</p>")
	text.WriteString("\nOpen your app to review and resolve this ticket.")
	if link := c.listLink(n.ListID); link != "" {
		fmt.Fprintf(&body, `<p><a href="%s">%s</a></p>`, link, link)
		fmt.Fprintf(&text, "\n%s", link)
	}

	return c.send(ctx, resendEmail{
		From:    c.fromEmail,
		To:      to,
		Subject: subject,
		HTML:    body.String(),
		Text:    text.String(),
	})
}

// SendTicketsIssued announces freshly issued tickets with per-person totals.
func (c *Client) SendTicketsIssued(ctx context.Context, to string, n notify.TicketsIssued) error {
	name := n.ListName
	if name == "" {
		name = "Untitled Ticket"
	}
	subject := fmt.Sprintf("New Ticket: %s", name)

	var text, body strings.Builder
	body.WriteString("<h2>You have a new ticket that is ready to be paid.</h2>")
	fmt.Fprintf(&body, "<p><strong>Ticket Name:</strong> %s</p>", html.EscapeString(name))
	fmt.Fprintf(&text, "You have a new ticket that is ready to be paid.\n\nTicket Name: %s\n\n", name)
	if len(n.Totals) == 0 {
		body.WriteString("<p>No per-person totals were provided.</p>")
	} else {
		body.WriteString("<table><thead><tr><th>Person</th><th>Total</th></tr></thead><tbody>")
		for _, pt := range n.Totals {
			amount := split.FormatMoney(pt.Total)
			fmt.Fprintf(&body, "<tr><td>%s</td><td>%s</td></tr>", html.EscapeString(pt.Person), amount)
			fmt.Fprintf(&text, "%s: %s\n", pt.Person, amount)
		}
		body.WriteString("</tbody></table>")
	}
	body.WriteString("<p>Log into the app to review and pay.</p>")
	text.WriteString("\nLog into the app to review and pay.")

	return c.send(ctx, resendEmail{
		From:    c.fromEmail,
		To:      to,
		Subject: subject,
		HTML:    body.String(),
		Text:    text.String(),
	})
}

func (c *Client) listLink(listID int64) string {
	if c.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/lists/%d", c.baseURL, listID)
}

// send posts one email, retrying network errors, 429 and 5xx responses with
// exponential backoff.
func (c *Client) send(ctx context.Context, payload resendEmail) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing api key")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, "POST", resendURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("send email: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			apiErr := fmt.Errorf("resend API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return retry.RetryableError(apiErr)
			}
			return apiErr
		}
		return nil
	})
}
