package fairland

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Vendor cloud constants.
const (
	// DefaultBaseURL is the production vendor cloud endpoint (EU region).
	DefaultBaseURL = "https://api-eu.fairlandiot.com"

	// defaultRequestTimeout bounds each HTTP request.
	defaultRequestTimeout = 10 * time.Second

	// successCode is the vendor envelope code for a successful operation.
	successCode = 200000

	// maxResponseSize caps response bodies to guard against runaway payloads.
	maxResponseSize = 4 << 20 // 4MB
)

// Vendor API paths.
const (
	pathLogin        = "/fyld-user-api/user/loginByPassword"
	pathCourtyards   = "/fyld-device-api/deviceGroupApi/allGroupInfo"
	pathDevices      = "/fyld-device-api/deviceApi/deviceAllGroupInfo"
	pathDataPoints   = "/fyld-device-api/deviceDataPointApi/deviceDataPointInfo"
	pathSetDataPoint = "/fyld-device-api/devicePropertySetApi/set"
)

// Request headers expected by the vendor cloud. The terminal and
// user-agent values identify the official mobile app; the API rejects
// requests without them.
const (
	headerTerminal  = "2"
	headerUserAgent = "Dart/3.5 (dart:io)"
	headerAccept    = "application/json;charset=UTF-8"
)

// Credentials holds the account details used to authenticate.
type Credentials struct {
	AccountName string
	Password    string
	CountryCode string
	PhoneCode   string
}

// ClientOptions configures a vendor cloud client.
type ClientOptions struct {
	// BaseURL overrides the vendor endpoint. Empty uses DefaultBaseURL.
	BaseURL string

	// Credentials for login. AccountName and Password are required.
	Credentials Credentials

	// Timeout bounds each HTTP request. Zero uses the default (10s).
	Timeout time.Duration

	// HTTPClient overrides the transport. Nil creates one with Timeout.
	HTTPClient *http.Client
}

// Client is an authenticated vendor cloud client.
//
// Authentication is lazy: the first request triggers a login, and a
// rejected token triggers exactly one re-login followed by one retry.
// Concurrent callers hitting an expired token share a single re-login.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials

	// session state, guarded by mu. generation increments on every
	// successful login so stale callers can detect a refresh they
	// don't need to repeat.
	mu         sync.RWMutex
	session    Session
	generation uint64

	// loginMu serialises logins so concurrent auth failures produce
	// a single login request.
	loginMu sync.Mutex
}

// NewClient creates a vendor cloud client.
//
// Returns an error if the account name or password is empty.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Credentials.AccountName == "" {
		return nil, fmt.Errorf("%w: account name is required", ErrClient)
	}
	if opts.Credentials.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrClient)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	creds := opts.Credentials
	if creds.CountryCode == "" {
		creds.CountryCode = "DE"
	}
	if creds.PhoneCode == "" {
		creds.PhoneCode = "49"
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		creds:      creds,
	}, nil
}

// envelope is the wrapper the vendor puts around every response body.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Session returns a copy of the current session. The token is empty
// until the first successful login.
func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Login authenticates against the vendor cloud and stores the session.
//
// Calling Login explicitly is optional; any other operation logs in on
// demand. Setup uses it to validate credentials before persisting them.
func (c *Client) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	return c.login(ctx)
}

// login performs the login request. Caller must hold loginMu.
func (c *Client) login(ctx context.Context) error {
	payload := map[string]any{
		"phoneCode":   c.creds.PhoneCode,
		"accountName": c.creds.AccountName,
		"password":    c.creds.Password,
		"countryCode": c.creds.CountryCode,
		"randStr":     "",
		"ticket":      "",
	}

	data, err := c.do(ctx, pathLogin, payload, false)
	if err != nil {
		// The vendor answers bad credentials with a non-success envelope
		// code, which do() reports as ErrClient for regular operations.
		// For login that means the credentials were rejected.
		if errors.Is(err, ErrClient) {
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return err
	}

	var result struct {
		Authorization string `json:"authorization"`
		UserID        string `json:"userId"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("%w: decoding login response: %v", ErrClient, err)
	}
	if result.Authorization == "" {
		return fmt.Errorf("%w: login response missing authorization token", ErrAuthentication)
	}

	c.mu.Lock()
	c.session = Session{Token: result.Authorization, UserID: result.UserID}
	c.generation++
	c.mu.Unlock()

	return nil
}

// refreshSession logs in again unless another goroutine already has.
// staleGen is the generation observed before the failed request; if the
// generation has advanced since, the session is already fresh.
func (c *Client) refreshSession(ctx context.Context, staleGen uint64) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	c.mu.RLock()
	current := c.generation
	c.mu.RUnlock()
	if current != staleGen {
		return nil
	}

	return c.login(ctx)
}

// post sends an authenticated request, transparently recovering from an
// expired or missing session with exactly one re-login and one retry.
func (c *Client) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	c.mu.RLock()
	gen := c.generation
	hasToken := c.session.Token != ""
	c.mu.RUnlock()

	if !hasToken {
		if err := c.refreshSession(ctx, gen); err != nil {
			return nil, err
		}
	} else {
		data, err := c.do(ctx, path, payload, true)
		if err == nil || !errors.Is(err, ErrAuthentication) {
			return data, err
		}
		if err := c.refreshSession(ctx, gen); err != nil {
			return nil, err
		}
	}

	return c.do(ctx, path, payload, true)
}

// do executes a single request and classifies failures:
//   - transport errors and non-2xx statuses (other than 401/403) are
//     ErrCommunication
//   - 401/403 is ErrAuthentication
//   - undecodable bodies and non-success envelope codes are ErrClient
func (c *Client) do(ctx context.Context, path string, payload any, authorized bool) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrClient, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrClient, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", headerAccept)
	req.Header.Set("User-Agent", headerUserAgent)
	req.Header.Set("terminal", headerTerminal)

	if authorized {
		c.mu.RLock()
		token := c.session.Token
		c.mu.RUnlock()
		if token == "" {
			return nil, fmt.Errorf("%w: no session token", ErrAuthentication)
		}
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommunication, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort cleanup

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrCommunication, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuthentication, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d", ErrCommunication, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrClient, err)
	}
	if env.Code != successCode {
		return nil, fmt.Errorf("%w: vendor code %d: %s", ErrClient, env.Code, env.Msg)
	}

	return env.Data, nil
}

// Courtyards lists the device groups registered to the account.
func (c *Client) Courtyards(ctx context.Context) ([]Courtyard, error) {
	data, err := c.post(ctx, pathCourtyards, map[string]any{
		"needDeviceCount": true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing courtyards: %w", err)
	}

	var courtyards []Courtyard
	if err := json.Unmarshal(data, &courtyards); err != nil {
		return nil, fmt.Errorf("%w: decoding courtyards: %v", ErrClient, err)
	}
	return courtyards, nil
}

// DevicesInCourtyard lists all devices bound to a courtyard. The result
// includes every device category; callers filter with Device.IsHeatPump.
func (c *Client) DevicesInCourtyard(ctx context.Context, courtyardID string) ([]Device, error) {
	data, err := c.post(ctx, pathDevices, map[string]any{
		"deviceGroupId": courtyardID,
		"shareId":       nil,
	})
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var result struct {
		BindDeviceInfos []Device `json:"bindDeviceInfos"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding devices: %v", ErrClient, err)
	}
	return result.BindDeviceInfos, nil
}

// DeviceDataPoints fetches the current data point list for a device.
func (c *Client) DeviceDataPoints(ctx context.Context, deviceID string) ([]DataPoint, error) {
	data, err := c.post(ctx, pathDataPoints, map[string]any{
		"deviceId": deviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching data points: %w", err)
	}

	var points []DataPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("%w: decoding data points: %v", ErrClient, err)
	}
	return points, nil
}

// SetDataPoint writes a value to a device data point.
//
// The value type must match the point's kind: bool for switches, a
// number for temperatures and numeric settings, an integer for enums.
func (c *Client) SetDataPoint(ctx context.Context, deviceID, dpID string, value any) error {
	_, err := c.post(ctx, pathSetDataPoint, map[string]any{
		"deviceId": deviceID,
		"dpIdValues": []map[string]any{
			{
				"type":  "",
				"dpId":  dpID,
				"value": value,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("setting data point %s: %w", dpID, err)
	}
	return nil
}
