package client

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	cookiejar "github.com/juju/persistent-cookiejar"

	"github.com/go-smartschool/go-smartschool/credentials"
	"github.com/go-smartschool/go-smartschool/internal/storage"
)

const (
	DefaultMaxLoginAttempts = 3
	DefaultTimeout          = 30 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/109.0"
)

// Options tune a Session. The zero value is usable.
type Options struct {
	// CacheDir holds cookies, the identity file and traces. Defaults to
	// ~/.cache/smartschool.
	CacheDir         string
	Timeout          time.Duration
	MaxLoginAttempts int
	// Transport replaces http.DefaultTransport, mostly for tests.
	Transport http.RoundTripper
	Logger    *slog.Logger
	// Trace dumps every exchange with the portal to CacheDir/dev_tracing.
	Trace bool
	Now   func() time.Time
}

// Session is an authenticated conversation with one Smartschool portal.
// A Session is not safe for concurrent use.
type Session struct {
	creds   *credentials.Credentials
	baseURL *url.URL

	httpClient *http.Client
	jar        *cookiejar.Jar
	storage    *storage.Storage
	cache      *Cache
	tracer     *Tracer
	logger     *slog.Logger
	now        func() time.Time

	maxLoginAttempts int
	loginAttempts    int
	identity         storage.Identity
}

// NewSession builds a session for creds, restoring cookies and the last
// known identity from the cache directory.
func NewSession(creds *credentials.Credentials, opts Options) (*Session, error) {
	if creds == nil {
		return nil, fmt.Errorf("%w: no credentials given", ErrConfiguration)
	}
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	base, err := parseMainURL(creds.MainURL)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStorage(opts.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache directory: %w", err)
	}

	identity := creds.Identity()
	if _, err := store.AccountDir(identity); err != nil {
		return nil, err
	}

	jar, err := openCookieJar(store.CookiePath(identity), logger)
	if err != nil {
		return nil, err
	}

	s := &Session{
		creds:            creds,
		baseURL:          base,
		jar:              jar,
		storage:          store,
		cache:            NewCache(),
		logger:           logger,
		now:              opts.Now,
		maxLoginAttempts: opts.MaxLoginAttempts,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxLoginAttempts <= 0 {
		s.maxLoginAttempts = DefaultMaxLoginAttempts
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	s.httpClient = &http.Client{
		Jar:       sessionCookieJar{jar},
		Timeout:   timeout,
		Transport: opts.Transport,
	}

	if opts.Trace {
		s.tracer = NewTracer(store.TracePath(), logger)
	}

	user, err := store.LoadIdentity(identity)
	if err != nil {
		logger.Warn("ignoring unreadable identity file", "error", err)
	}
	s.identity = user

	return s, nil
}

// parseMainURL accepts a bare host name, which is what the credentials
// hold, or a full URL.
func parseMainURL(mainURL string) (*url.URL, error) {
	raw := strings.TrimRight(mainURL, "/")
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid main_url %q", ErrConfiguration, mainURL)
	}
	return u, nil
}

// openCookieJar loads the persisted jar, starting over when the file on disk
// cannot be read.
func openCookieJar(path string, logger *slog.Logger) (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{Filename: path})
	if err == nil {
		return jar, nil
	}

	logger.Warn("discarding unreadable cookie file", "path", path, "error", err)
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		return nil, fmt.Errorf("failed to remove cookie file: %w", rmErr)
	}

	jar, err = cookiejar.New(&cookiejar.Options{Filename: path})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// sessionCookieExpiry is given to cookies the portal sends without an
// expiry, so the jar writes them to disk like any other cookie.
var sessionCookieExpiry = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// sessionCookieJar keeps session cookies such as PHPSESSID across process
// restarts. The persistent jar only saves cookies that carry an expiry.
type sessionCookieJar struct {
	*cookiejar.Jar
}

func (j sessionCookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	stored := make([]*http.Cookie, len(cookies))
	for i, c := range cookies {
		if c.MaxAge == 0 && c.Expires.IsZero() {
			persistent := *c
			persistent.Expires = sessionCookieExpiry
			c = &persistent
		}
		stored[i] = c
	}
	j.Jar.SetCookies(u, stored)
}

// CreateURL resolves path against the portal's base URL. Absolute URLs are
// returned untouched.
func (s *Session) CreateURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return s.baseURL.String() + "/" + strings.TrimLeft(path, "/")
}

// Start makes sure the session is logged in by visiting the login page.
func (s *Session) Start(ctx context.Context) error {
	_, err := s.Get(ctx, "/login", nil)
	return err
}

// Logout forgets cookies, the identity and every cached response.
func (s *Session) Logout() error {
	s.jar.RemoveAll()
	s.cache.Clear()
	s.identity = nil
	s.loginAttempts = 0

	identity := s.creds.Identity()
	if err := s.storage.DeleteCookies(identity); err != nil {
		return err
	}
	return s.storage.DeleteIdentity(identity)
}

// Identity returns the authenticated user captured during account
// verification, or nil if none is known yet.
func (s *Session) Identity() storage.Identity {
	if s.identity == nil {
		return nil
	}
	return maps.Clone(s.identity)
}

func (s *Session) setIdentity(user storage.Identity) {
	s.identity = user
	if err := s.storage.SaveIdentity(s.creds.Identity(), user); err != nil {
		s.logger.Warn("failed to save identity", "error", err)
	}
}

func (s *Session) Credentials() *credentials.Credentials {
	return s.creds
}

func (s *Session) Cache() *Cache {
	return s.cache
}

// LoginAttempts is the number of login redirects seen since the last
// successful request.
func (s *Session) LoginAttempts() int {
	return s.loginAttempts
}

func (s *Session) Now() time.Time {
	return s.now()
}

func (s *Session) saveCookies() {
	if err := s.jar.Save(); err != nil {
		s.logger.Warn("failed to save cookies", "error", err)
	}
}

func (s *Session) cookieCount() int {
	return len(s.jar.AllCookies())
}
