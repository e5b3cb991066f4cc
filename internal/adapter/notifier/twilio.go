package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/srgjo27/activity_booking/internal/core/ports"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	// BaseURL redirects API calls away from api.twilio.com, e.g. to a mock.
	BaseURL string
}

// Twilio sends through the Messages resource. One type covers SMS and
// WhatsApp; the latter only differs by the whatsapp: address prefix.
type Twilio struct {
	name   string
	from   string
	prefix string
	api    *twilio.RestClient
}

func newTwilio(name, from, prefix string, cfg TwilioConfig, httpClient *http.Client) (*Twilio, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.BaseURL != "" {
		target, err := url.Parse(cfg.BaseURL)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("twilio base url %q is invalid", cfg.BaseURL)
		}
		redirected := *httpClient
		redirected.Transport = &hostRewriter{target: target, next: httpClient.Transport}
		httpClient = &redirected
	}

	c := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  httpClient,
	}
	c.SetAccountSid(cfg.AccountSID)

	return &Twilio{
		name:   name,
		from:   from,
		prefix: prefix,
		api: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
			Client:   c,
		}),
	}, nil
}

func NewTwilioSMS(from string, cfg TwilioConfig, client *http.Client) (*Twilio, error) {
	return newTwilio("sms", from, "", cfg, client)
}

func NewTwilioWhatsApp(from string, cfg TwilioConfig, client *http.Client) (*Twilio, error) {
	return newTwilio("whatsapp", from, "whatsapp:", cfg, client)
}

func (t *Twilio) Name() string { return t.name }

func (t *Twilio) address(number string) string {
	if t.prefix == "" || strings.HasPrefix(number, t.prefix) {
		return number
	}
	return t.prefix + number
}

func (t *Twilio) Send(ctx context.Context, to, message string) (ports.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.SendResult{}, err
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(t.address(t.from))
	params.SetTo(t.address(to))
	params.SetBody(message)

	resp, err := t.api.Api.CreateMessage(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			return ports.SendResult{}, fmt.Errorf("twilio error %d: %s", restErr.Code, restErr.Message)
		}
		return ports.SendResult{}, fmt.Errorf("twilio request: %w", err)
	}

	var sid string
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	return ports.SendResult{Success: true, ProviderMessageID: sid}, nil
}

// hostRewriter sends every request to target, keeping path and query.
type hostRewriter struct {
	target *url.URL
	next   http.RoundTripper
}

func (h *hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = h.target.Scheme
	out.URL.Host = h.target.Host
	out.Host = h.target.Host

	next := h.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(out)
}
