package client

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/go-smartschool/go-smartschool/credentials"
)

const (
	testUser     = "bumba"
	testPassword = "delu"
	testBirthday = "2010-05-01"
	testSecret   = "JBSWY3DPEHPK3PXP"

	sessionCookie = "PHPSESSID"
)

const loginPage = `<html><body>
<form name="login_form" method="post" action="/login">
  <input type="hidden" name="login_form[_token]" value="tok123">
  <input type="text" name="login_form[_username]">
  <input type="password" name="login_form[_password]">
  <select name="login_form[lang]"><option value="nl">NL</option><option value="en" selected>EN</option></select>
  <button type="submit" name="login_form[login]">Login</button>
</form>
</body></html>`

const verificationPage = `<html><head>
<script type="application/json">{"user":{"id":"4_123_0","name":"Bumba"}}</script>
</head><body>
<form name="account_verification_form" method="post" action="/login/account-verification">
  <input type="hidden" name="account_verification_form[_token]" value="v1">
  <input type="text" name="account_verification_form[_security_question_answer]">
</form>
</body></html>`

// fakePortal mimics the login flows and dispatchers of a Smartschool site.
type fakePortal struct {
	t      *testing.T
	server *httptest.Server

	needVerification bool
	needTwoFactor    bool
	mechanisms       []string

	mu       sync.Mutex
	xml      map[string]string // action -> body
	json     map[string]http.HandlerFunc
	commands []string

	logins        atomic.Int32
	verifications atomic.Int32
	twoFactors    atomic.Int32
	dispatches    atomic.Int32
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()

	p := &fakePortal{
		t:          t,
		mechanisms: []string{googleAuthenticator},
		xml:        make(map[string]string),
		json:       make(map[string]http.HandlerFunc),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", p.handleLogin)
	mux.HandleFunc("/login/account-verification", p.handleVerification)
	mux.HandleFunc("/2fa", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>2fa</body></html>")
	})
	mux.HandleFunc("/2fa/api/v1/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"possibleAuthenticationMechanisms": p.mechanisms})
	})
	mux.HandleFunc("/2fa/api/v1/google-authenticator", p.handleTwoFactor)
	mux.HandleFunc("/", p.handleRoot)

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) setXML(action, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.xml[action] = body
}

func (p *fakePortal) handleJSON(path string, h http.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.json[path] = h
}

func (p *fakePortal) lastCommand() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.commands) == 0 {
		return ""
	}
	return p.commands[len(p.commands)-1]
}

func setStage(w http.ResponseWriter, stage string) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: stage, Path: "/"})
}

func stage(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// requireSession redirects to whatever the portal still wants from the user.
func (p *fakePortal) requireSession(w http.ResponseWriter, r *http.Request) bool {
	switch stage(r) {
	case "ok":
		return true
	case "verify":
		http.Redirect(w, r, "/login/account-verification", http.StatusFound)
	case "2fa":
		http.Redirect(w, r, "/2fa", http.StatusFound)
	default:
		http.Redirect(w, r, "/login", http.StatusFound)
	}
	return false
}

func (p *fakePortal) afterPassword() string {
	switch {
	case p.needVerification:
		return "verify"
	case p.needTwoFactor:
		return "2fa"
	default:
		return "ok"
	}
}

func (p *fakePortal) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if stage(r) == "ok" {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		fmt.Fprint(w, loginPage)
		return
	}

	p.logins.Add(1)
	ok := r.PostFormValue("login_form[_username]") == testUser &&
		r.PostFormValue("login_form[_password]") == testPassword &&
		r.PostFormValue("login_form[_token]") == "tok123" &&
		r.PostFormValue("login_form[lang]") == "en"
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	setStage(w, p.afterPassword())
	http.Redirect(w, r, "/", http.StatusFound)
}

func (p *fakePortal) handleVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		fmt.Fprint(w, verificationPage)
		return
	}

	p.verifications.Add(1)
	if r.PostFormValue("account_verification_form[_security_question_answer]") != testBirthday ||
		r.PostFormValue("account_verification_form[_token]") != "v1" {
		http.Redirect(w, r, "/login/account-verification", http.StatusFound)
		return
	}
	if p.needTwoFactor {
		setStage(w, "2fa")
	} else {
		setStage(w, "ok")
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (p *fakePortal) handleTwoFactor(w http.ResponseWriter, r *http.Request) {
	p.twoFactors.Add(1)

	var body struct {
		Code string `json:"google2fa"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !totp.Validate(body.Code, testSecret) {
		http.Error(w, "bad code", http.StatusForbidden)
		return
	}
	setStage(w, "ok")
	fmt.Fprint(w, "{}")
}

func (p *fakePortal) handleRoot(w http.ResponseWriter, r *http.Request) {
	if !p.requireSession(w, r) {
		return
	}

	if r.URL.Path == "/" && r.URL.Query().Get("file") == "dispatcher" {
		p.handleDispatcher(w, r)
		return
	}

	p.mu.Lock()
	h, ok := p.json[r.URL.Path]
	p.mu.Unlock()
	if ok {
		h(w, r)
		return
	}

	if r.URL.Path == "/" {
		fmt.Fprint(w, "<html><body>home</body></html>")
		return
	}
	http.NotFound(w, r)
}

func (p *fakePortal) handleDispatcher(w http.ResponseWriter, r *http.Request) {
	command := r.PostFormValue("command")
	if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
		http.Error(w, "xhr only", http.StatusBadRequest)
		return
	}

	doc, err := xmlquery.Parse(strings.NewReader(command))
	if err != nil {
		http.Error(w, "bad command", http.StatusBadRequest)
		return
	}
	action := ""
	if node := xmlquery.FindOne(doc, "//command/action"); node != nil {
		action = node.InnerText()
	}

	p.mu.Lock()
	p.commands = append(p.commands, command)
	body, ok := p.xml[action]
	p.mu.Unlock()

	p.dispatches.Add(1)
	if !ok {
		http.Error(w, "unknown action", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprint(w, body)
}

func testCredentials(p *fakePortal) *credentials.Credentials {
	return &credentials.Credentials{
		Username:  testUser,
		Password:  testPassword,
		MainURL:   p.server.URL,
		MFASecret: testSecret,
		Birthday:  testBirthday,
	}
}

func newTestSession(t *testing.T, p *fakePortal, cacheDir string, creds *credentials.Credentials, opts Options) *Session {
	t.Helper()

	if creds == nil {
		creds = testCredentials(p)
	}
	if cacheDir == "" {
		cacheDir = t.TempDir()
	}
	opts.CacheDir = cacheDir
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s, err := NewSession(creds, opts)
	require.NoError(t, err)
	return s
}

const messageListXML = `<server><response><status>ok</status><actions><action><data><messages>
<message><id>101</id><from>Lotte Peeters</from><fromImage>/img/1</fromImage><subject>Re: LO les</subject><date>2023-11-13T10:19:00+01:00</date><status>1</status><attachment>0</attachment><unread>0</unread><label>0</label><deleted>0</deleted><allowreply>1</allowreply><allowreplyenabled>1</allowreplyenabled><hasreply>0</hasreply><hasForward>0</hasForward><realBox>inbox</realBox><sendDate></sendDate></message>
<message><id>102</id><from>Jan Janssens</from><fromImage>/img/2</fromImage><subject>Frans</subject><date>2023-11-12T08:00:00+01:00</date><status>0</status><attachment>1</attachment><unread>1</unread><label>0</label><deleted>0</deleted><allowreply>1</allowreply><allowreplyenabled>1</allowreplyenabled><hasreply>0</hasreply><hasForward>0</hasForward><realBox>inbox</realBox><sendDate></sendDate></message>
</messages></data></action></actions></response></server>`

const fullMessageXML = `<server><response><status>ok</status><actions><action><data><message>
<id>101</id><from>Lotte Peeters</from><to></to><subject>Griezelfestijn</subject><date>2023-11-13T10:19:00+01:00</date>
<body>&lt;p&gt;Hallo&lt;/p&gt;</body><status>1</status><attachment>2</attachment><unread>0</unread><label>0</label>
<receivers><to>Bumba</to></receivers>
<ccreceivers><to>Jan</to><to>Piet</to></ccreceivers>
<bccreceivers></bccreceivers>
<senderPicture>/pic</senderPicture><fromTeam>0</fromTeam><canReply>1</canReply><hasReply>0</hasReply><hasForward>0</hasForward><sendDate></sendDate>
</message></data></action></actions></response></server>`
