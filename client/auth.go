package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pquerna/otp/totp"

	"github.com/go-smartschool/go-smartschool/internal/storage"
)

const (
	twoFactorConfigPath = "/2fa/api/v1/config"
	twoFactorSubmitPath = "/2fa/api/v1/google-authenticator"
	googleAuthenticator = "googleAuthenticator"

	loginFormSelector        = `form[name="login_form"]`
	verificationFormSelector = `form[name="account_verification_form"]`
)

type authState int

const (
	stateAuthenticated authState = iota
	stateLogin
	stateVerification
	stateTwoFactor
)

func (a authState) String() string {
	switch a {
	case stateLogin:
		return "login"
	case stateVerification:
		return "account-verification"
	case stateTwoFactor:
		return "2fa"
	default:
		return "authenticated"
	}
}

// authStateFor classifies the page the portal landed on. The checks go from
// most to least specific because "/login/account-verification" also
// contains "login".
func authStateFor(u *url.URL) authState {
	if u == nil {
		return stateAuthenticated
	}
	switch path := u.Path; {
	case strings.Contains(path, "2fa"):
		return stateTwoFactor
	case strings.Contains(path, "account-verification"):
		return stateVerification
	case strings.Contains(path, "login"):
		return stateLogin
	default:
		return stateAuthenticated
	}
}

func isAuthURL(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return authStateFor(u) != stateAuthenticated
}

func (s *Session) authenticate(ctx context.Context, state authState, page *Response) (*Response, error) {
	switch state {
	case stateLogin:
		return s.submitLogin(ctx, page)
	case stateVerification:
		return s.submitVerification(ctx, page)
	case stateTwoFactor:
		return s.submitTwoFactor(ctx)
	default:
		return page, nil
	}
}

// submitLogin fills in the login form found on page and posts it.
func (s *Session) submitLogin(ctx context.Context, page *Response) (*Response, error) {
	doc, err := parseHTML(page.Body)
	if err != nil {
		return nil, err
	}
	form, err := readForm(doc, loginFormSelector)
	if err != nil {
		return nil, err
	}

	var hasUser, hasPass bool
	values := url.Values{}
	for _, field := range form.Fields {
		switch {
		case strings.Contains(field.Name, "username"):
			values.Set(field.Name, s.creds.Username)
			hasUser = true
		case strings.Contains(field.Name, "password"):
			values.Set(field.Name, s.creds.Password)
			hasPass = true
		default:
			values.Set(field.Name, field.Value)
		}
	}
	if !hasUser || !hasPass {
		return nil, &ParsingError{What: "login form", Err: errors.New("no username or password field")}
	}

	s.logger.Debug("submitting login form", "url", page.URL.String())
	return s.send(ctx, http.MethodPost, form.target(page.URL), &RequestOptions{Form: values})
}

// submitVerification answers the account verification question with the
// configured birthday. The portal embeds the user on this page, which is
// where the session identity comes from.
func (s *Session) submitVerification(ctx context.Context, page *Response) (*Response, error) {
	doc, err := parseHTML(page.Body)
	if err != nil {
		return nil, err
	}

	if user := extractIdentity(doc); user != nil {
		s.setIdentity(user)
	}

	if s.creds.Birthday == "" {
		return nil, fmt.Errorf("%w: the portal asks for account verification but no birthday is configured", ErrConfiguration)
	}

	form, err := readForm(doc, verificationFormSelector)
	if err != nil {
		return nil, err
	}

	answered := false
	values := url.Values{}
	for _, field := range form.Fields {
		if strings.Contains(field.Name, "security_question_answer") {
			values.Set(field.Name, s.creds.Birthday)
			answered = true
			continue
		}
		values.Set(field.Name, field.Value)
	}
	if !answered {
		return nil, &ParsingError{What: "account verification form", Err: errors.New("no security question field")}
	}

	s.logger.Debug("submitting account verification", "url", page.URL.String())
	return s.send(ctx, http.MethodPost, form.target(page.URL), &RequestOptions{Form: values})
}

type twoFactorConfig struct {
	PossibleAuthenticationMechanisms []string `json:"possibleAuthenticationMechanisms"`
}

// submitTwoFactor answers the 2FA challenge with a TOTP code and then loads
// the landing page so the caller sees where the portal sends us next.
func (s *Session) submitTwoFactor(ctx context.Context) (*Response, error) {
	resp, err := s.send(ctx, http.MethodGet, s.CreateURL(twoFactorConfigPath), nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, newDownloadError(resp)
	}

	var cfg twoFactorConfig
	if err := json.Unmarshal(resp.Body, &cfg); err != nil {
		return nil, &JSONError{URL: resp.URL.String(), Err: err}
	}

	if !slices.Contains(cfg.PossibleAuthenticationMechanisms, googleAuthenticator) {
		offered := strings.Join(cfg.PossibleAuthenticationMechanisms, ", ")
		if offered == "" {
			offered = "none"
		}
		return nil, fmt.Errorf("%w: unsupported 2FA mechanism(s): %s (only %s is supported)",
			ErrAuthentication, offered, googleAuthenticator)
	}

	if s.creds.MFASecret == "" {
		return nil, fmt.Errorf("%w: the portal asks for a 2FA code but no mfa secret is configured", ErrAuthentication)
	}

	code, err := totp.GenerateCode(s.creds.MFASecret, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate 2FA code: %w", ErrAuthentication, err)
	}

	resp, err = s.send(ctx, http.MethodPost, s.CreateURL(twoFactorSubmitPath), &RequestOptions{
		JSON: map[string]string{"google2fa": code},
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: 2FA code rejected (%s)", ErrAuthentication, resp.Status)
	}

	s.logger.Debug("2FA code accepted")
	return s.send(ctx, http.MethodGet, s.CreateURL("/"), nil)
}

func parseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParsingError{What: "html page", Err: err}
	}
	return doc, nil
}

// extractIdentity looks for the JSON blob the verification page carries and
// returns its user object.
func extractIdentity(doc *goquery.Document) storage.Identity {
	var user storage.Identity
	doc.Find(`script[type="application/json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var blob map[string]any
		if err := json.Unmarshal([]byte(sel.Text()), &blob); err != nil {
			return true
		}
		if u, ok := blob["user"].(map[string]any); ok {
			user = u
			return false
		}
		if _, ok := blob["id"]; ok {
			user = blob
			return false
		}
		return true
	})
	return user
}

type formField struct {
	Name  string
	Value string
}

type htmlForm struct {
	Action string
	Fields []formField
}

// target resolves the form action against the page it was found on.
func (f *htmlForm) target(page *url.URL) string {
	if f.Action == "" {
		return page.String()
	}
	action, err := url.Parse(f.Action)
	if err != nil {
		return page.String()
	}
	return page.ResolveReference(action).String()
}

// readForm collects the named fields of the only form matching selector,
// with the values a browser would submit by default.
func readForm(doc *goquery.Document, selector string) (*htmlForm, error) {
	forms := doc.Find(selector)
	if forms.Length() != 1 {
		return nil, &ParsingError{
			What: "html form",
			Err:  fmt.Errorf("expected one %s, found %d", selector, forms.Length()),
		}
	}

	form := &htmlForm{}
	form.Action, _ = forms.Attr("action")

	forms.Find("input, button, select, textarea").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}

		var value string
		switch goquery.NodeName(sel) {
		case "select":
			value = selectedOption(sel)
		case "textarea":
			value = sel.Text()
		default:
			value, _ = sel.Attr("value")
		}
		form.Fields = append(form.Fields, formField{Name: name, Value: value})
	})

	return form, nil
}

// selectedOption returns the selected option's value, or the first non-empty
// one when nothing is selected.
func selectedOption(sel *goquery.Selection) string {
	first, selected := "", ""
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, _ := opt.Attr("value")
		if value == "" {
			return
		}
		if first == "" {
			first = value
		}
		if _, ok := opt.Attr("selected"); ok && selected == "" {
			selected = value
		}
	})
	if selected != "" {
		return selected
	}
	return first
}
