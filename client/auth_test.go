package client

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	cookiejar "github.com/juju/persistent-cookiejar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-smartschool/go-smartschool/credentials"
)

func TestAuthStateFor(t *testing.T) {
	tests := []struct {
		path string
		want authState
	}{
		{"/", stateAuthenticated},
		{"/results/api/v1/periods/", stateAuthenticated},
		{"/login", stateLogin},
		{"/login/account-verification", stateVerification},
		{"/account-verification", stateVerification},
		{"/2fa", stateTwoFactor},
		{"/login/2fa", stateTwoFactor},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, authStateFor(&url.URL{Path: tt.path}))
		})
	}
}

func TestDo_LogsInAndReissuesOriginalRequest(t *testing.T) {
	p := newFakePortal(t)
	p.setXML("message list", messageListXML)
	s := newTestSession(t, p, "", nil, Options{})

	headers, err := s.MessageHeaders(context.Background(), MessageListOptions{Box: BoxInbox})
	require.NoError(t, err)

	require.Len(t, headers, 2)
	assert.Equal(t, "Re: LO les", headers[0].Subject)
	assert.Equal(t, "Frans", headers[1].Subject)

	assert.EqualValues(t, 1, p.logins.Load())
	assert.EqualValues(t, 1, p.dispatches.Load())
	assert.Equal(t, 0, s.LoginAttempts())
}

func TestDo_WrongPasswordExhaustsBudget(t *testing.T) {
	p := newFakePortal(t)
	creds := testCredentials(p)
	creds.Password = "wrong"
	s := newTestSession(t, p, "", creds, Options{})

	_, err := s.Get(context.Background(), "/", nil)
	require.ErrorIs(t, err, ErrAuthentication)
	assert.ErrorIs(t, err, ErrSmartschool)
	assert.EqualValues(t, DefaultMaxLoginAttempts, p.logins.Load())
}

func TestDo_MaxLoginAttemptsIsConfigurable(t *testing.T) {
	p := newFakePortal(t)
	creds := testCredentials(p)
	creds.Password = "wrong"
	s := newTestSession(t, p, "", creds, Options{MaxLoginAttempts: 1})

	_, err := s.Get(context.Background(), "/", nil)
	require.ErrorIs(t, err, ErrAuthentication)
	assert.EqualValues(t, 1, p.logins.Load())
}

func TestDo_WithoutCredentials(t *testing.T) {
	var s Session
	_, err := s.Get(context.Background(), "/", nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewSession(nil, Options{CacheDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewSession(&credentials.Credentials{Username: "x"}, Options{CacheDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, credentials.ErrInvalid)
}

func TestStart_DoesNotReissueLoginPage(t *testing.T) {
	p := newFakePortal(t)
	s := newTestSession(t, p, "", nil, Options{})

	require.NoError(t, s.Start(context.Background()))
	assert.EqualValues(t, 1, p.logins.Load())

	// already logged in: no new login
	require.NoError(t, s.Start(context.Background()))
	assert.EqualValues(t, 1, p.logins.Load())
}

func TestVerification_CapturesIdentity(t *testing.T) {
	p := newFakePortal(t)
	p.needVerification = true
	cacheDir := t.TempDir()
	s := newTestSession(t, p, cacheDir, nil, Options{})

	assert.Nil(t, s.Identity())
	require.NoError(t, s.Start(context.Background()))

	assert.EqualValues(t, 1, p.verifications.Load())
	user := s.Identity()
	require.NotNil(t, user)
	assert.Equal(t, "4_123_0", user["id"])
	assert.Equal(t, "Bumba", user["name"])

	// a new session picks the identity up from disk
	again := newTestSession(t, p, cacheDir, nil, Options{})
	assert.Equal(t, "4_123_0", again.Identity()["id"])
}

func TestVerification_WithoutBirthday(t *testing.T) {
	p := newFakePortal(t)
	p.needVerification = true
	creds := testCredentials(p)
	creds.Birthday = ""
	s := newTestSession(t, p, "", creds, Options{})

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrConfiguration)
	assert.EqualValues(t, 0, p.verifications.Load())
}

func TestTwoFactor_GoogleAuthenticator(t *testing.T) {
	p := newFakePortal(t)
	p.needVerification = true
	p.needTwoFactor = true
	s := newTestSession(t, p, "", nil, Options{})

	p.setXML("message list", messageListXML)
	headers, err := s.MessageHeaders(context.Background(), MessageListOptions{})
	require.NoError(t, err)
	assert.Len(t, headers, 2)

	assert.EqualValues(t, 1, p.logins.Load())
	assert.EqualValues(t, 1, p.verifications.Load())
	assert.EqualValues(t, 1, p.twoFactors.Load())
}

func TestTwoFactor_UnsupportedMechanism(t *testing.T) {
	p := newFakePortal(t)
	p.needTwoFactor = true
	p.mechanisms = []string{"sms"}
	s := newTestSession(t, p, "", nil, Options{})

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrAuthentication)
	assert.Contains(t, err.Error(), "sms")
	assert.EqualValues(t, 0, p.twoFactors.Load())
}

func TestTwoFactor_MissingSecret(t *testing.T) {
	p := newFakePortal(t)
	p.needTwoFactor = true
	creds := testCredentials(p)
	creds.MFASecret = ""
	s := newTestSession(t, p, "", creds, Options{})

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrAuthentication)
	assert.EqualValues(t, 0, p.twoFactors.Load())
}

func TestCookiesPersistAcrossSessions(t *testing.T) {
	p := newFakePortal(t)
	cacheDir := t.TempDir()

	first := newTestSession(t, p, cacheDir, nil, Options{})
	require.NoError(t, first.Start(context.Background()))
	require.EqualValues(t, 1, p.logins.Load())

	// PHPSESSID is a session cookie, sent without an expiry
	second := newTestSession(t, p, cacheDir, nil, Options{})
	resp, err := second.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Contains(t, resp.Text(), "home")
	assert.EqualValues(t, 1, p.logins.Load())
}

func TestSessionCookieJar_SavesCookiesWithoutExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	u, err := url.Parse("https://school.smartschool.be/")
	require.NoError(t, err)

	jar, err := cookiejar.New(&cookiejar.Options{Filename: path})
	require.NoError(t, err)
	sessionCookieJar{jar}.SetCookies(u, []*http.Cookie{{Name: "PHPSESSID", Value: "abc", Path: "/"}})
	require.NoError(t, jar.Save())

	reopened, err := cookiejar.New(&cookiejar.Options{Filename: path})
	require.NoError(t, err)
	cookies := reopened.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "abc", cookies[0].Value)

	// the portal can still clear it
	sessionCookieJar{reopened}.SetCookies(u, []*http.Cookie{{Name: "PHPSESSID", Path: "/", MaxAge: -1}})
	assert.Empty(t, reopened.Cookies(u))
}

func TestDo_FailedFlowResetsLoginAttempts(t *testing.T) {
	p := newFakePortal(t)
	p.needTwoFactor = true
	creds := testCredentials(p)
	creds.MFASecret = ""
	s := newTestSession(t, p, "", creds, Options{})

	require.ErrorIs(t, s.Start(context.Background()), ErrAuthentication)
	assert.Equal(t, 0, s.LoginAttempts())
}

func TestCorruptCookieFileIsDiscarded(t *testing.T) {
	p := newFakePortal(t)
	cacheDir := t.TempDir()
	creds := testCredentials(p)

	first := newTestSession(t, p, cacheDir, creds, Options{})
	path := first.storage.CookiePath(creds.Identity())
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s := newTestSession(t, p, cacheDir, creds, Options{})
	require.NoError(t, s.Start(context.Background()))
	assert.EqualValues(t, 1, p.logins.Load())
}

func TestLogout_ForgetsSession(t *testing.T) {
	p := newFakePortal(t)
	p.needVerification = true
	s := newTestSession(t, p, "", nil, Options{})

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, s.Identity())

	require.NoError(t, s.Logout())
	assert.Nil(t, s.Identity())
	assert.False(t, s.storage.HasSession(s.creds.Identity()))

	require.NoError(t, s.Start(context.Background()))
	assert.EqualValues(t, 2, p.logins.Load())
}

func TestReadForm(t *testing.T) {
	doc, err := parseHTML([]byte(loginPage))
	require.NoError(t, err)

	form, err := readForm(doc, loginFormSelector)
	require.NoError(t, err)
	assert.Equal(t, "/login", form.Action)

	values := map[string]string{}
	for _, f := range form.Fields {
		values[f.Name] = f.Value
	}
	assert.Equal(t, "tok123", values["login_form[_token]"])
	assert.Equal(t, "en", values["login_form[lang]"])
	assert.Contains(t, values, "login_form[_username]")

	_, err = readForm(doc, verificationFormSelector)
	var perr *ParsingError
	assert.ErrorAs(t, err, &perr)
}
