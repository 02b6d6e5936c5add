package provisioning

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/nerrad567/iotc-device/internal/credential"
)

// Protocol constants.
const (
	// DefaultEndpoint is the global provisioning endpoint.
	DefaultEndpoint = "global.azure-devices-provisioning.net"

	// APIVersion is used when no model data is sent.
	APIVersion = "2018-11-01"

	// ModelAPIVersion is used when model data is attached to the registration.
	ModelAPIVersion = "2019-01-15"

	// DefaultPollInterval is the wait between "assigning" polls.
	DefaultPollInterval = 3 * time.Second

	// DefaultInitialDelay is the wait between register and the first poll.
	DefaultInitialDelay = 1 * time.Second

	// DefaultMaxAttempts is the retry ceiling for "assigning" answers.
	DefaultMaxAttempts = 20

	// defaultRequestTimeout bounds each HTTP call.
	defaultRequestTimeout = 30 * time.Second

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 1 << 20

	userAgent   = "iot-central-client/1.0"
	contentType = "application/json; charset=utf-8"
)

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Logger is the logging surface used by the client.
// Compatible with *slog.Logger and *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Options configures a provisioning Client. Zero values take the defaults above.
type Options struct {
	// Endpoint is the DPS host name, without scheme.
	Endpoint string

	// ModelData, when set, is attached to the register body as "data" and
	// switches the API version to ModelAPIVersion.
	ModelData json.RawMessage

	// TokenLifetime is the validity of the registration token.
	TokenLifetime time.Duration

	// PollInterval is the wait between "assigning" polls.
	PollInterval time.Duration

	// InitialDelay is the wait before the first poll.
	InitialDelay time.Duration

	// MaxAttempts is how many times an "assigning" answer is retried.
	// The total number of polls is therefore MaxAttempts+1.
	MaxAttempts int

	// HTTPClient overrides the HTTP client. When nil a client is built from TLSConfig.
	HTTPClient Doer

	// TLSConfig is used for the default HTTP client (client certificate for
	// X.509 identities, root CAs, verification toggle).
	TLSConfig *tls.Config

	// Logger receives progress and diagnostics. Defaults to slog.Default().
	Logger Logger

	// Now is the clock used for token expiry. Defaults to time.Now.
	Now func() time.Time
}

// Assignment is the outcome of a successful provisioning run.
type Assignment struct {
	// Host is the hub the device was assigned to.
	Host string

	// DeviceID is the device id reported by the service.
	DeviceID string

	// OperationID is the provisioning operation that produced the assignment.
	OperationID string

	// Polls is how many poll requests were made.
	Polls int
}

// Client runs the register/poll protocol against one provisioning endpoint.
//
// Thread Safety: a Client holds no per-call state and may be shared.
type Client struct {
	opts Options
	http Doer
}

// NewClient creates a provisioning client, filling defaults.
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.TokenLifetime <= 0 {
		opts.TokenLifetime = credential.DefaultTokenLifetime
	}
	if opts.PollInterval < 0 {
		opts.PollInterval = 0
	} else if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.InitialDelay < 0 {
		opts.InitialDelay = 0
	} else if opts.InitialDelay == 0 {
		opts.InitialDelay = DefaultInitialDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	doer := opts.HTTPClient
	if doer == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = opts.TLSConfig
		doer = &http.Client{Transport: transport, Timeout: defaultRequestTimeout}
	}

	return &Client{opts: opts, http: doer}
}

// APIVersion returns the protocol version in use.
func (c *Client) APIVersion() string {
	if len(c.opts.ModelData) > 0 {
		return ModelAPIVersion
	}
	return APIVersion
}

// Provision registers the identity and polls until a hub is assigned.
//
// Returns:
//   - ErrRegistrationRejected / ErrMalformedResponse if register fails (not retried)
//   - ErrTimeout if still "assigning" after MaxAttempts retries
//   - ErrUnexpectedStatus for any other poll answer
//   - credential errors if the secret cannot sign
func (c *Client) Provision(ctx context.Context, id credential.Identity) (Assignment, error) {
	header, err := c.header(id)
	if err != nil {
		return Assignment{}, err
	}

	operationID, err := c.register(ctx, id, header)
	if err != nil {
		return Assignment{}, err
	}

	return c.pollAssignment(ctx, id, operationID, header)
}

// header builds the fixed request headers, including the registration token
// for symmetric key identities.
func (c *Client) header(id credential.Identity) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "*/*")

	tok, ok, err := id.Token(credential.ProvisioningResource(id.ScopeID, id.DeviceID), c.opts.TokenLifetime, c.opts.Now())
	if err != nil {
		return nil, err
	}
	if ok {
		tok.KeyName = credential.ProvisioningKeyName
		h.Set("Authorization", tok.String())
	}
	return h, nil
}

// register performs the PUT and returns the operation id.
func (c *Client) register(ctx context.Context, id credential.Identity, header http.Header) (string, error) {
	body, err := json.Marshal(registerRequest{
		RegistrationID: id.DeviceID,
		Data:           c.opts.ModelData,
	})
	if err != nil {
		return "", fmt.Errorf("encoding register body: %w", err)
	}

	target := c.url(id, "register")
	c.opts.Logger.Debug("provisioning register", "url", target, "api_version", c.APIVersion())

	status, raw, err := c.do(ctx, http.MethodPut, target, body, header)
	if err != nil {
		return "", err
	}

	resp, ok := decodeOperation(raw)
	switch {
	case !ok:
		return "", &ResponseError{Op: "register", StatusCode: status, Body: raw, Err: ErrMalformedResponse}
	case resp.hasErrorCode():
		return "", &ResponseError{Op: "register", StatusCode: status, Body: raw, Err: ErrRegistrationRejected}
	case resp.OperationID == "":
		return "", &ResponseError{Op: "register", StatusCode: status, Body: raw, Err: ErrMalformedResponse}
	}

	return resp.OperationID, nil
}

// pollAssignment queries the operation until it leaves the "assigning" state.
func (c *Client) pollAssignment(ctx context.Context, id credential.Identity, operationID string, header http.Header) (Assignment, error) {
	if err := wait(ctx, c.opts.InitialDelay); err != nil {
		return Assignment{}, err
	}

	target := c.url(id, "operations/"+url.PathEscape(operationID))

	for attempt := 0; ; attempt++ {
		status, raw, err := c.do(ctx, http.MethodGet, target, nil, header)
		if err != nil {
			// Transport failures count against the same ceiling as "assigning".
			if ctx.Err() != nil || attempt >= c.opts.MaxAttempts {
				return Assignment{}, err
			}
			c.opts.Logger.Warn("provisioning poll failed, retrying", "attempt", attempt+1, "error", err)
			if err := wait(ctx, c.opts.PollInterval); err != nil {
				return Assignment{}, err
			}
			continue
		}

		resp, ok := decodeOperation(raw)
		if !ok {
			return Assignment{}, &ResponseError{Op: "poll", StatusCode: status, Body: raw, Err: ErrMalformedResponse}
		}

		switch resp.Status {
		case statusAssigning:
			if attempt >= c.opts.MaxAttempts {
				return Assignment{}, fmt.Errorf("%w: still assigning after %d polls", ErrTimeout, attempt+1)
			}
			c.opts.Logger.Debug("device assignment pending", "operation_id", operationID, "attempt", attempt+1)
			if err := wait(ctx, c.opts.PollInterval); err != nil {
				return Assignment{}, err
			}

		case statusAssigned:
			if resp.RegistrationState == nil || resp.RegistrationState.AssignedHub == "" {
				return Assignment{}, &ResponseError{Op: "poll", StatusCode: status, Body: raw, Err: ErrMalformedResponse}
			}
			a := Assignment{
				Host:        resp.RegistrationState.AssignedHub,
				DeviceID:    resp.RegistrationState.DeviceID,
				OperationID: operationID,
				Polls:       attempt + 1,
			}
			if a.DeviceID == "" {
				a.DeviceID = id.DeviceID
			}
			c.opts.Logger.Info("device assigned", "host", a.Host, "polls", a.Polls)
			return a, nil

		default:
			return Assignment{}, &ResponseError{Op: "poll", StatusCode: status, Body: raw, Err: ErrUnexpectedStatus}
		}
	}
}

// url builds https://{endpoint}/{scope}/registrations/{device}/{suffix}?api-version=v.
func (c *Client) url(id credential.Identity, suffix string) string {
	return fmt.Sprintf("https://%s/%s/registrations/%s/%s?api-version=%s",
		c.opts.Endpoint,
		url.PathEscape(id.ScopeID),
		url.PathEscape(id.DeviceID),
		suffix,
		c.APIVersion(),
	)
}

// do sends one request and returns the status code and body.
func (c *Client) do(ctx context.Context, method, target string, body []byte, header http.Header) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: building request: %w", ErrRequestFailed, err)
	}
	req.Header = header.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: reading response: %w", ErrRequestFailed, err)
	}
	return resp.StatusCode, raw, nil
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("provisioning cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
