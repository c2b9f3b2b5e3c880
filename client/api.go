package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RequestOptions describe the body and headers of a portal request. Bodies
// are kept as values so the request can be reissued after a login.
type RequestOptions struct {
	Query  url.Values
	Form   url.Values
	JSON   any
	Body   []byte
	Header http.Header
	// ContentType applies to Body only.
	ContentType string
	Progress    func(read, total int64)
}

// Response is a fully read portal response.
type Response struct {
	StatusCode int
	Status     string
	// URL is the final URL after redirects.
	URL         *url.URL
	Header      http.Header
	Body        []byte
	Request     *http.Request
	RequestBody []byte
	Redirects   []Redirect
}

// Redirect is one hop the client followed before reaching Response.URL.
type Redirect struct {
	StatusCode int
	URL        string
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) Text() string {
	return string(r.Body)
}

// Do sends a request through the authentication state machine: whenever the
// portal redirects to a login, verification or 2FA page, the matching flow
// runs and the original request is sent again. Cookies are saved on return.
// The login attempt counter starts from zero again after every call, whether
// it succeeded or failed.
func (s *Session) Do(ctx context.Context, method, path string, opts *RequestOptions) (resp *Response, err error) {
	if s == nil || s.creds == nil {
		return nil, fmt.Errorf("%w: session has no credentials, create it with NewSession", ErrConfiguration)
	}
	defer s.saveCookies()
	defer func() {
		if err != nil {
			s.loginAttempts = 0
		}
	}()

	target := s.CreateURL(path)
	resp, err = s.send(ctx, method, target, opts)
	if err != nil {
		return nil, err
	}

	authRan := false
	for {
		state := authStateFor(resp.URL)
		if state == stateAuthenticated {
			if !authRan || isAuthURL(target) {
				break
			}
			s.logger.Debug("reissuing request after authentication", "method", method, "url", target)
			authRan = false
			if resp, err = s.send(ctx, method, target, opts); err != nil {
				return nil, err
			}
			continue
		}

		s.loginAttempts++
		if s.loginAttempts > s.maxLoginAttempts {
			return nil, fmt.Errorf("%w: still redirected to %s after %d login attempts",
				ErrAuthentication, resp.URL.Path, s.maxLoginAttempts)
		}

		s.logger.Debug("authentication required", "state", state, "attempt", s.loginAttempts)
		authRan = true
		if resp, err = s.authenticate(ctx, state, resp); err != nil {
			return nil, err
		}
	}

	s.loginAttempts = 0
	return resp, nil
}

func (s *Session) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return s.Do(ctx, http.MethodGet, path, opts)
}

func (s *Session) Post(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return s.Do(ctx, http.MethodPost, path, opts)
}

// send performs a single exchange, following HTTP redirects but never the
// authentication flows.
func (s *Session) send(ctx context.Context, method, target string, opts *RequestOptions) (resp *Response, err error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	state := s.traceState()
	defer func() {
		s.tracer.Record(method, target, opts, state, resp, err)
	}()

	req, body, err := newRequest(ctx, method, target, opts)
	if err != nil {
		return nil, err
	}

	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var reader io.Reader = httpResp.Body
	if opts.Progress != nil {
		reader = &progressReader{reader: httpResp.Body, total: httpResp.ContentLength, onProg: opts.Progress}
	}

	respBody, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode:  httpResp.StatusCode,
		Status:      httpResp.Status,
		URL:         httpResp.Request.URL,
		Header:      httpResp.Header,
		Body:        respBody,
		Request:     httpResp.Request,
		RequestBody: body,
		Redirects:   redirectHistory(httpResp),
	}, nil
}

func newRequest(ctx context.Context, method, target string, opts *RequestOptions) (*http.Request, []byte, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid url %q: %w", target, err)
	}
	if len(opts.Query) > 0 {
		q := u.Query()
		for key, values := range opts.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body []byte
	contentType := ""
	switch {
	case opts.JSON != nil:
		if body, err = json.Marshal(opts.JSON); err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		contentType = "application/json"
	case opts.Form != nil:
		body = []byte(opts.Form.Encode())
		contentType = "application/x-www-form-urlencoded; charset=UTF-8"
	case opts.Body != nil:
		body = opts.Body
		contentType = opts.ContentType
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return req, body, nil
}

// redirectHistory walks the chain of responses that led to resp, oldest first.
func redirectHistory(resp *http.Response) []Redirect {
	var hops []Redirect
	for prev := resp.Request.Response; prev != nil; prev = prev.Request.Response {
		hops = append([]Redirect{{StatusCode: prev.StatusCode, URL: prev.Request.URL.String()}}, hops...)
	}
	return hops
}

// JSON fetches path and decodes the body. GET sends data as the query
// string, any other method as a form body. Bodies that decode to a string
// are decoded again until something else comes out; an empty string yields
// an empty object.
func (s *Session) JSON(ctx context.Context, method, path string, data url.Values, header http.Header) (any, error) {
	opts := &RequestOptions{Header: header}
	if strings.EqualFold(method, http.MethodGet) {
		opts.Query = data
	} else {
		opts.Form = data
	}

	resp, err := s.Do(ctx, method, path, opts)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, newDownloadError(resp)
	}
	return decodeJSON(resp.URL.String(), resp.Body)
}

func decodeJSON(source string, body []byte) (any, error) {
	var value any = string(body)
	for {
		text, ok := value.(string)
		if !ok {
			return value, nil
		}
		if strings.TrimSpace(text) == "" {
			return map[string]any{}, nil
		}

		var next any
		if err := json.Unmarshal([]byte(text), &next); err != nil {
			return nil, &JSONError{URL: source, Err: err}
		}
		value = next
	}
}

// FetchJSON is JSON with the result converted into T.
func FetchJSON[T any](ctx context.Context, s *Session, method, path string, data url.Values, header http.Header) (T, error) {
	var out T

	raw, err := s.JSON(ctx, method, path, data, header)
	if err != nil {
		return out, err
	}
	if err := convertJSON(raw, &out); err != nil {
		return out, &JSONError{URL: s.CreateURL(path), Err: err}
	}
	return out, nil
}

func convertJSON(raw any, out any) error {
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}

func xhrHeader() http.Header {
	return http.Header{"X-Requested-With": {"XMLHttpRequest"}}
}
