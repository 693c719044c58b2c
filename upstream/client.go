// Typed client for the upstream gateway API. Every endpoint maps loose JSON
// to a strict response type; only documented fields are handled.
package upstream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"onerouter/types"

	"go.uber.org/zap"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	// Csrf supplies the anti-forgery token for every non-GET call
	Csrf *CsrfTokenManager
}

func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	c := &Client{
		baseURL: baseURL,
		client:  httpClient,
		logger:  logger,
	}

	c.Csrf = NewCsrfTokenManager(c.fetchCsrfToken)

	return c
}

type csrfTokenResponse struct {
	CsrfToken string `json:"csrf_token"`
}

func (c *Client) fetchCsrfToken(ctx context.Context) (string, error) {
	var resp csrfTokenResponse

	if err := c.get(ctx, "/csrf/token", &resp); err != nil {
		return "", err
	}

	return resp.CsrfToken, nil
}

// Services fetches the full list of connected services
func (c *Client) Services(ctx context.Context) ([]types.GatewayService, error) {
	var services []types.GatewayService

	if err := c.get(ctx, "/services", &services); err != nil {
		return nil, err
	}

	return services, nil
}

// ServiceEnvironments fetches per-environment credential status for one service
func (c *Client) ServiceEnvironments(ctx context.Context, serviceName string) (*types.EnvironmentStatus, error) {
	var status types.EnvironmentStatus

	if err := c.get(ctx, "/services/"+serviceName+"/environments", &status); err != nil {
		return nil, err
	}

	return &status, nil
}

type switchAllRequest struct {
	Environment types.Environment `json:"environment"`
	ServiceIDs  []string          `json:"service_ids"`
}

// SwitchAllEnvironments issues the batch environment mutation. Completion is
// not guaranteed within the call; callers must verify separately.
func (c *Client) SwitchAllEnvironments(ctx context.Context, env types.Environment, serviceIDs []string) error {
	return c.post(ctx, "/services/switch-all-environments", switchAllRequest{
		Environment: env,
		ServiceIDs:  serviceIDs,
	}, nil)
}

type verifyEnvironmentRequest struct {
	Expected switchAllRequest `json:"expected"`
}

// VerifyEnvironment asks the gateway to confirm the resulting state for
// exactly the given service ids
func (c *Client) VerifyEnvironment(ctx context.Context, env types.Environment, serviceIDs []string) (*types.VerifyResult, error) {
	var result types.VerifyResult

	err := c.post(ctx, "/services/verify-environment", verifyEnvironmentRequest{
		Expected: switchAllRequest{
			Environment: env,
			ServiceIDs:  serviceIDs,
		},
	}, &result)

	if err != nil {
		return nil, err
	}

	return &result, nil
}

// ConfigureServices commits a staged onboarding batch to the credential
// store. The gateway applies the batch atomically.
func (c *Client) ConfigureServices(ctx context.Context, req types.ConfigureRequest) (*types.ConfigureResponse, error) {
	var resp types.ConfigureResponse

	if err := c.post(ctx, "/onboarding/configure", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// get issues a GET request. GETs bypass the csrf token entirely.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)

	if err != nil {
		return err
	}

	return c.do(req, out)
}

// post issues a csrf-protected POST. On a 403 the cached token is
// invalidated, one fresh token is fetched and the request is retried exactly
// once; a second 403 is a terminal authorization failure.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)

	if err != nil {
		return err
	}

	token, err := c.Csrf.Get(ctx)

	if err != nil {
		return err
	}

	status, err := c.postOnce(ctx, path, payload, token, out)

	if err != nil || status != http.StatusForbidden {
		return err
	}

	c.logger.Warn("Gateway rejected csrf token, refreshing and retrying once", zap.String("path", path))

	c.Csrf.Invalidate()

	token, err = c.Csrf.Get(ctx)

	if err != nil {
		return err
	}

	status, err = c.postOnce(ctx, path, payload, token, out)

	if status == http.StatusForbidden {
		return ErrAuthRetryExhausted
	}

	return err
}

// postOnce performs a single POST attempt. A 403 is reported via the status
// return with a nil error so the caller can decide on the retry; any other
// failure comes back as an error.
func (c *Client) postOnce(ctx context.Context, path string, payload []byte, token string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))

	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", token)

	resp, err := c.client.Do(req)

	if err != nil {
		return 0, err
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		io.Copy(io.Discard, resp.Body)
		return http.StatusForbidden, nil
	}

	return resp.StatusCode, decodeResponse(resp, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	body, err := io.ReadAll(resp.Body)

	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}

	if out == nil {
		return nil
	}

	return json.Unmarshal(body, out)
}
