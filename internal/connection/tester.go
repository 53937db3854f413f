// Package connection tests reachability of the mail server and outbound
// integrations configured in the settings sections.
package connection

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/telemetry"
	"github.com/bcnelson/helpdesk-settings/internal/validation"
	"github.com/go-viper/mapstructure/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"go.uber.org/zap"
)

// Connection kinds.
const (
	KindSMTP    = "smtp"
	KindWebhook = "webhook"
	KindSlack   = "slack"
	KindJira    = "jira"
)

var tracer = otel.Tracer("github.com/bcnelson/helpdesk-settings/internal/connection")

// TesterInterface defines the connectivity test used by the API.
type TesterInterface interface {
	Test(ctx context.Context, req domain.ConnectionTestRequest) (domain.ConnectionResult, error)
}

// Ensure Tester implements TesterInterface.
var _ TesterInterface = (*Tester)(nil)

// Options configures a Tester.
type Options struct {
	Timeout       time.Duration
	RatePerMinute int
	Burst         int
	// HTTPClient overrides the client used for webhook, Slack and Jira tests.
	HTTPClient *http.Client
}

// Tester runs connection tests. Tests are rate limited across all kinds.
type Tester struct {
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	dialer  *net.Dialer
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

// New creates a Tester.
func New(opts Options, metrics *telemetry.Metrics, logger *zap.Logger) *Tester {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerMinute > 0 {
		limit = rate.Limit(float64(opts.RatePerMinute) / 60)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Tester{
		client:  client,
		limiter: rate.NewLimiter(limit, opts.Burst),
		timeout: opts.Timeout,
		dialer:  &net.Dialer{Timeout: opts.Timeout},
		metrics: metrics,
		logger:  logger.Named("connection"),
	}
}

// Test checks that the integration described by req is reachable. A failed
// connection is reported in the result; the error is reserved for requests
// that cannot be tested at all.
func (t *Tester) Test(ctx context.Context, req domain.ConnectionTestRequest) (domain.ConnectionResult, error) {
	ctx, span := tracer.Start(ctx, "connection.Test")
	defer span.End()
	span.SetAttributes(attribute.String("connection.kind", req.Kind))

	var run func(context.Context, map[string]any) (domain.ConnectionResult, error)
	switch strings.ToLower(req.Kind) {
	case KindSMTP:
		run = t.testSMTP
	case KindWebhook:
		run = t.testWebhook
	case KindSlack:
		run = t.testSlack
	case KindJira:
		run = t.testJira
	default:
		return domain.ConnectionResult{}, fmt.Errorf("%w: unknown connection kind %q", domain.ErrInvalidInput, req.Kind)
	}

	if !t.limiter.Allow() {
		return domain.ConnectionResult{Success: false, Message: "too many connection tests, try again shortly"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	res, err := run(ctx, req.Payload)
	if err != nil {
		return domain.ConnectionResult{}, err
	}
	t.metrics.ConnectionTest(req.Kind, res.Success)
	span.SetAttributes(attribute.Bool("connection.success", res.Success))
	t.logger.Info("connection test",
		zap.String("kind", req.Kind),
		zap.Bool("success", res.Success),
		zap.String("message", res.Message),
	)
	return res, nil
}

func (t *Tester) testSMTP(ctx context.Context, payload map[string]any) (domain.ConnectionResult, error) {
	var cfg domain.EmailSettings
	if err := decode(payload, &cfg); err != nil {
		return domain.ConnectionResult{}, err
	}
	if err := validation.ValidateHostName(cfg.SMTPHost); err != nil {
		return domain.ConnectionResult{}, fmt.Errorf("%w: smtpHost: %v", domain.ErrInvalidInput, err)
	}
	if err := validation.ValidatePort(cfg.SMTPPort); err != nil {
		return domain.ConnectionResult{}, fmt.Errorf("%w: smtpPort: %v", domain.ErrInvalidInput, err)
	}

	addr := net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort))
	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return failed("Could not connect to %s: %v", addr, err), nil
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		return failed("SMTP handshake with %s failed: %v", addr, err), nil
	}
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		return failed("SMTP EHLO failed: %v", err), nil
	}
	if cfg.SMTPUseTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return failed("SMTP server %s does not support STARTTLS", addr), nil
		}
		if err := c.StartTLS(&tls.Config{ServerName: cfg.SMTPHost}); err != nil {
			return failed("STARTTLS failed: %v", err), nil
		}
	}
	if cfg.SMTPUsername != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)); err != nil {
				return failed("SMTP authentication failed: %v", err), nil
			}
		}
	}
	_ = c.Quit()
	return domain.ConnectionResult{Success: true, Message: fmt.Sprintf("Connected to SMTP server %s", addr)}, nil
}

func (t *Tester) testWebhook(ctx context.Context, payload map[string]any) (domain.ConnectionResult, error) {
	var cfg domain.IntegrationSettings
	if err := decode(payload, &cfg); err != nil {
		return domain.ConnectionResult{}, err
	}
	if err := validation.ValidateURL(cfg.WebhookURL, "http"); err != nil {
		return domain.ConnectionResult{}, fmt.Errorf("%w: webhookUrl: %v", domain.ErrInvalidInput, err)
	}

	body, err := json.Marshal(map[string]any{
		"event":     "connection_test",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return domain.ConnectionResult{}, err
	}
	headers := map[string]string{}
	if cfg.WebhookSecret != "" {
		headers["X-Webhook-Signature"] = "sha256=" + sign(cfg.WebhookSecret, body)
	}
	return t.post(ctx, "Webhook", cfg.WebhookURL, body, headers), nil
}

func (t *Tester) testSlack(ctx context.Context, payload map[string]any) (domain.ConnectionResult, error) {
	var cfg domain.IntegrationSettings
	if err := decode(payload, &cfg); err != nil {
		return domain.ConnectionResult{}, err
	}
	if err := validation.ValidateURL(cfg.SlackWebhookURL, "http"); err != nil {
		return domain.ConnectionResult{}, fmt.Errorf("%w: slackWebhookUrl: %v", domain.ErrInvalidInput, err)
	}

	msg := map[string]string{"text": "Helpdesk connection test"}
	if cfg.SlackChannel != "" {
		msg["channel"] = cfg.SlackChannel
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return domain.ConnectionResult{}, err
	}
	return t.post(ctx, "Slack", cfg.SlackWebhookURL, body, nil), nil
}

func (t *Tester) testJira(ctx context.Context, payload map[string]any) (domain.ConnectionResult, error) {
	var cfg domain.IntegrationSettings
	if err := decode(payload, &cfg); err != nil {
		return domain.ConnectionResult{}, err
	}
	if err := validation.ValidateURL(cfg.JiraBaseURL, "http"); err != nil {
		return domain.ConnectionResult{}, fmt.Errorf("%w: jiraBaseUrl: %v", domain.ErrInvalidInput, err)
	}

	url := strings.TrimRight(cfg.JiraBaseURL, "/") + "/rest/api/2/serverInfo"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ConnectionResult{}, fmt.Errorf("%w: jiraBaseUrl: %v", domain.ErrInvalidInput, err)
	}
	req.Header.Set("Accept", "application/json")
	if cfg.JiraAPIToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.JiraAPIToken)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return failed("Jira request failed: %v", err), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed("Jira responded with status %d", resp.StatusCode), nil
	}

	var info struct {
		Version string `json:"version"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&info)
	if info.Version != "" {
		return domain.ConnectionResult{Success: true, Message: "Connected to Jira " + info.Version}, nil
	}
	return domain.ConnectionResult{Success: true, Message: "Connected to Jira"}, nil
}

func (t *Tester) post(ctx context.Context, what, url string, body []byte, headers map[string]string) domain.ConnectionResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failed("%s URL is invalid: %v", what, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return failed("%s request failed: %v", what, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed("%s responded with status %d", what, resp.StatusCode)
	}
	return domain.ConnectionResult{Success: true, Message: what + " test message delivered"}
}

// decode reads a payload keyed by the settings' JSON field names. Numbers
// and booleans sent as strings are accepted.
func decode(payload map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(payload); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func failed(format string, args ...any) domain.ConnectionResult {
	return domain.ConnectionResult{Success: false, Message: fmt.Sprintf(format, args...)}
}
