// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/xmidt-org/bascule/acquire"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

// Errors that can be returned by this package. Since most of these errors are returned wrapped, it
// is safest to use errors.Is() to check for them.
var (
	ErrUnsupportedScheme    = errors.New("docker address scheme must be unix, tcp, http or https")
	ErrAuthAcquirerFailure  = errors.New("failed acquiring auth token")
	ErrNotFound             = errors.New("docker reported the resource as not found")
	ErrBadRequest           = errors.New("docker rejected the request as invalid")
	ErrFailedAuthentication = errors.New("failed to authenticate with docker")
	ErrConflict             = errors.New("docker reported a conflict with the resource state")
	ErrNotModified          = errors.New("docker reported the resource as already in the requested state")
	ErrServiceAbsent        = errors.New("docker service is not available")
)

var (
	errNonSuccessResponse = errors.New("docker responded with a non-success status code")
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errDoRequestFailure   = errors.New("http client failed while sending request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONMarshal        = errors.New("failed marshaling request body as JSON payload")
)

const (
	errWrappedFmt      = "%w: %s"
	unixSocketHost     = "docker"
	defaultTimeout     = 30 * time.Second
	defaultDockerHost  = "unix:///var/run/docker.sock"
	contentTypeJSON    = "application/json"
	errorMessageMaxLen = 512
)

// BasicClientConfig contains config data for the client that will be used to
// make requests to the docker engine.
type BasicClientConfig struct {
	// Address is the docker engine endpoint (i.e. unix:///var/run/docker.sock or tcp://10.0.0.2:2375).
	// (Optional) Defaults to the local docker socket.
	Address string

	// APIVersion pins the engine API version (i.e. v1.43).
	// (Optional) If not provided, unversioned paths are used.
	APIVersion string

	// Timeout bounds every request/response call. Streams are not bounded.
	// (Optional) Defaults to 30 seconds.
	Timeout time.Duration

	// Auth provides the mechanism to add auth headers to outgoing requests, which
	// is useful when the engine sits behind an authenticating proxy.
	// (Optional) If not provided, no auth headers are added.
	Auth Auth

	// Logger to be used by the client.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// Auth contains authorization data for requests to docker.
type Auth struct {
	JWT   acquire.RemoteBearerTokenAcquirerOptions
	Basic string
}

// BasicClient is the client used to make requests to the docker engine.
type BasicClient struct {
	client    *http.Client
	auth      acquire.Acquirer
	baseURL   string
	timeout   time.Duration
	logger    *zap.Logger
	getLogger func(context.Context) *zap.Logger
}

type response struct {
	Body []byte
	Code int
}

// NewBasicClient creates a new BasicClient that can be used to
// make requests to docker.
func NewBasicClient(config BasicClientConfig, getLogger func(context.Context) *zap.Logger) (*BasicClient, error) {
	err := validateBasicConfig(&config)
	if err != nil {
		return nil, err
	}
	if getLogger == nil {
		getLogger = sallust.Get
	}

	httpClient, baseURL, err := buildHTTPClient(config.Address)
	if err != nil {
		return nil, err
	}
	if len(config.APIVersion) > 0 {
		baseURL += "/" + strings.TrimPrefix(config.APIVersion, "/")
	}

	tokenAcquirer, err := buildTokenAcquirer(config.Auth)
	if err != nil {
		return nil, err
	}

	return &BasicClient{
		client:    httpClient,
		auth:      tokenAcquirer,
		baseURL:   baseURL,
		timeout:   config.Timeout,
		logger:    config.Logger,
		getLogger: getLogger,
	}, nil
}

// FetchOnce issues a single GET against path and returns the response payload.
func (c *BasicClient) FetchOnce(ctx context.Context, path string, params url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.sendRequest(ctx, http.MethodGet, c.buildURL(path, params), nil)
	if err != nil {
		return nil, err
	}

	if resp.Code != http.StatusOK {
		c.log(ctx).Debug("docker responded with non-200 response for fetch request",
			zap.String("path", path), zap.Int("code", resp.Code))
		return nil, newStatusError(resp.Code, resp.Body)
	}
	return resp.Body, nil
}

// Command issues a single state-changing request (POST, DELETE) against path.
// A non-nil body is sent as JSON. Any 2xx status is a success.
func (c *BasicClient) Command(ctx context.Context, method, path string, params url.Values, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
		}
		reader = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.sendRequest(ctx, method, c.buildURL(path, params), reader)
	if err != nil {
		return nil, err
	}

	if resp.Code < http.StatusOK || resp.Code >= http.StatusMultipleChoices {
		c.log(ctx).Error("docker responded with a non-successful status code for a command request",
			zap.String("method", method), zap.String("path", path), zap.Int("code", resp.Code))
		return nil, newStatusError(resp.Code, resp.Body)
	}
	return resp.Body, nil
}

// FetchStream opens a long-lived GET against path. The returned Stream yields one
// JSON document per Recv until the connection drops or the stream is closed.
func (c *BasicClient) FetchStream(ctx context.Context, path string, params url.Values) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	r, err := c.newRequest(ctx, http.MethodGet, c.buildURL(path, params), nil)
	if err != nil {
		cancel()
		return nil, err
	}

	resp, err := c.client.Do(r)
	if err != nil {
		cancel()
		return nil, wrapDoError(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorMessageMaxLen))
		return nil, newStatusError(resp.StatusCode, body)
	}

	return newJSONStream(resp.Body, cancel), nil
}

func (c *BasicClient) buildURL(path string, params url.Values) string {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *BasicClient) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	err = acquire.AddAuth(r, c.auth)
	if err != nil {
		return nil, fmt.Errorf(errWrappedFmt, ErrAuthAcquirerFailure, err.Error())
	}
	if body != nil {
		r.Header.Set("Content-Type", contentTypeJSON)
	}
	return r, nil
}

func (c *BasicClient) sendRequest(ctx context.Context, method, url string, body io.Reader) (response, error) {
	r, err := c.newRequest(ctx, method, url, body)
	if err != nil {
		return response{}, err
	}
	resp, err := c.client.Do(r)
	if err != nil {
		return response{}, wrapDoError(err)
	}
	defer resp.Body.Close()
	var dResp = response{
		Code: resp.StatusCode,
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return dResp, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}
	dResp.Body = bodyBytes
	return dResp, nil
}

func (c *BasicClient) log(ctx context.Context) *zap.Logger {
	if l := c.getLogger(ctx); l != nil {
		return l
	}
	return c.logger
}

// wrapDoError keeps the absence of the engine (no socket, nothing listening)
// distinguishable from other transport failures.
func wrapDoError(err error) error {
	if errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %w", ErrServiceAbsent, err)
	}
	return fmt.Errorf(errWrappedFmt, errDoRequestFailure, err.Error())
}

// StatusError carries a non-success status code along with the message docker
// reported for it.
type StatusError struct {
	Code    int
	Message string
	Err     error
}

func newStatusError(code int, body []byte) *StatusError {
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &msg); err != nil || msg.Message == "" {
		msg.Message = strings.TrimSpace(string(body))
	}
	return &StatusError{
		Code:    code,
		Message: msg.Message,
		Err:     translateNonSuccessStatusCode(code),
	}
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v: received status %d", e.Err, e.Code)
	}
	return fmt.Sprintf("%v: received status %d: %s", e.Err, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode lets HTTP error encoders pass the docker status through.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// translateNonSuccessStatusCode returns as specific error
// for known docker status codes.
func translateNonSuccessStatusCode(code int) error {
	switch code {
	case http.StatusNotModified:
		return ErrNotModified
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrFailedAuthentication
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		return errNonSuccessResponse
	}
}

func buildHTTPClient(address string) (*http.Client, string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, "", fmt.Errorf(errWrappedFmt, ErrUnsupportedScheme, err.Error())
	}

	switch u.Scheme {
	case "unix":
		socket := u.Path
		transport := &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
		return &http.Client{Transport: transport}, "http://" + unixSocketHost, nil
	case "tcp":
		return &http.Client{}, "http://" + u.Host, nil
	case "http", "https":
		return &http.Client{}, strings.TrimSuffix(u.String(), "/"), nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func isEmpty(options acquire.RemoteBearerTokenAcquirerOptions) bool {
	return len(options.AuthURL) < 1 || options.Buffer == 0 || options.Timeout == 0
}

func buildTokenAcquirer(auth Auth) (acquire.Acquirer, error) {
	if !isEmpty(auth.JWT) {
		return acquire.NewRemoteBearerTokenAcquirer(auth.JWT)
	} else if len(auth.Basic) > 0 {
		return acquire.NewFixedAuthAcquirer(auth.Basic)
	}
	return &acquire.DefaultAcquirer{}, nil
}

func validateBasicConfig(config *BasicClientConfig) error {
	if config.Address == "" {
		config.Address = defaultDockerHost
	}

	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	return nil
}
