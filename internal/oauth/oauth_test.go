package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/cexll/evergit/internal/failure"
)

// fakeLaunchpad serves the three OAuth endpoints and a signed API resource.
type fakeLaunchpad struct {
	mu         sync.Mutex
	authorized bool
	headers    map[string]string
	forms      map[string]map[string]string
	referers   map[string]string

	requestTokenBody string
}

func (f *fakeLaunchpad) record(page string, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headers == nil {
		f.headers = map[string]string{}
		f.forms = map[string]map[string]string{}
		f.referers = map[string]string{}
	}
	_ = req.ParseForm()
	form := map[string]string{}
	for k := range req.PostForm {
		form[k] = req.PostForm.Get(k)
	}
	f.headers[page] = req.Header.Get("Authorization")
	f.forms[page] = form
	f.referers[page] = req.Header.Get("Referer")
}

func (f *fakeLaunchpad) server(t *testing.T) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/+request-token", func(w http.ResponseWriter, req *http.Request) {
		f.record("request", req)
		body := f.requestTokenBody
		if body == "" {
			body = "oauth_token=req-key&oauth_token_secret=req+secret"
		}
		_, _ = w.Write([]byte(body))
	}).Methods(http.MethodPost)
	r.HandleFunc("/+access-token", func(w http.ResponseWriter, req *http.Request) {
		f.record("access", req)
		f.mu.Lock()
		ok := f.authorized
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Request token has not yet been reviewed."))
			return
		}
		_, _ = w.Write([]byte("oauth_token=acc-key&oauth_token_secret=acc-secret&lp.context=None"))
	}).Methods(http.MethodPost)
	r.HandleFunc("/1.0/bugs/{id}", func(w http.ResponseWriter, req *http.Request) {
		f.record("resource", req)
		if req.Header.Get("Authorization") != ResourceHeader(DefaultConsumerKey, &Token{Key: "acc-key", Secret: "acc-secret"}) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":` + mux.Vars(req)["id"] + `}`))
	}).Methods(http.MethodGet)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// confirmFunc adapts a function to Confirmer.
type confirmFunc func(ctx context.Context, url string) error

func (f confirmFunc) WaitForAuthorization(ctx context.Context, url string) error { return f(ctx, url) }

var headerParam = regexp.MustCompile(`(\w+)="([^"]*)"`)

func parseHeader(t *testing.T, h string) map[string]string {
	t.Helper()
	if !strings.HasPrefix(h, "OAuth ") {
		t.Fatalf("header %q does not start with OAuth", h)
	}
	out := map[string]string{}
	for _, m := range headerParam.FindAllStringSubmatch(h, -1) {
		out[m[1]] = m[2]
	}
	return out
}

func TestAuthorizationEngine_FullFlow(t *testing.T) {
	fake := &fakeLaunchpad{}
	srv := fake.server(t)

	var shownURL string
	engine := &AuthorizationEngine{
		Root: srv.URL,
		Confirmer: confirmFunc(func(_ context.Context, url string) error {
			shownURL = url
			fake.mu.Lock()
			fake.authorized = true
			fake.mu.Unlock()
			return nil
		}),
	}
	creds := &Credentials{
		ConsumerKey: "evergit",
		now:         func() time.Time { return time.Unix(1700000000, 0) },
		nonce:       func() string { return "n0nce" },
	}

	if err := engine.Authorize(context.Background(), creds); err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}

	if shownURL != srv.URL+"/+authorize-token?oauth_token=req-key" {
		t.Errorf("authorization url = %q", shownURL)
	}
	if got := engine.AuthorizationURL(creds.RequestToken); got != shownURL {
		t.Errorf("AuthorizationURL() = %q, want %q", got, shownURL)
	}
	if creds.AccessToken == nil || creds.AccessToken.Key != "acc-key" || creds.AccessToken.Secret != "acc-secret" {
		t.Fatalf("AccessToken = %+v", creds.AccessToken)
	}

	req := parseHeader(t, fake.headers["request"])
	wantReq := map[string]string{
		"oauth_consumer_key":     "evergit",
		"oauth_signature_method": "PLAINTEXT",
		"oauth_signature":        "&",
		"oauth_timestamp":        "1700000000",
		"oauth_nonce":            "n0nce",
		"oauth_version":          "1.0",
	}
	for k, v := range wantReq {
		if req[k] != v {
			t.Errorf("request-token header %s = %q, want %q", k, req[k], v)
		}
	}
	if _, ok := req["oauth_token"]; ok {
		t.Error("request-token header must not carry oauth_token")
	}

	acc := parseHeader(t, fake.headers["access"])
	if acc["oauth_token"] != "req-key" {
		t.Errorf("access-token oauth_token = %q", acc["oauth_token"])
	}
	if acc["oauth_signature"] != "&req%20secret" {
		t.Errorf("access-token signature = %q, want &req%%20secret", acc["oauth_signature"])
	}
	if fake.forms["access"]["oauth_signature"] != "&req%20secret" {
		t.Errorf("access-token form signature = %q", fake.forms["access"]["oauth_signature"])
	}
	if fake.referers["request"] != srv.URL {
		t.Errorf("Referer = %q, want %q", fake.referers["request"], srv.URL)
	}
}

func TestAuthorizationEngine_UserNeverAuthorized(t *testing.T) {
	fake := &fakeLaunchpad{}
	srv := fake.server(t)

	engine := &AuthorizationEngine{
		Root:      srv.URL,
		Confirmer: confirmFunc(func(context.Context, string) error { return nil }),
	}
	creds := NewCredentials("evergit")

	err := engine.Authorize(context.Background(), creds)
	if !failure.Is(err, failure.AuthRejected) {
		t.Fatalf("err = %v, want AuthRejected", err)
	}
	if creds.AccessToken != nil {
		t.Error("no access token should be held after a failed exchange")
	}
}

func TestCredentials_RequestTokenMissingFields(t *testing.T) {
	fake := &fakeLaunchpad{requestTokenBody: "oauth_token=only"}
	srv := fake.server(t)

	creds := &Credentials{ConsumerKey: "evergit", Root: srv.URL}
	_, err := creds.GetRequestToken(context.Background())
	if !failure.Is(err, failure.ProtocolViolation) {
		t.Fatalf("err = %v, want ProtocolViolation", err)
	}
	if creds.RequestToken != nil {
		t.Error("RequestToken should stay nil")
	}
}

func TestCredentials_Preconditions(t *testing.T) {
	if _, err := (&Credentials{}).GetRequestToken(context.Background()); err == nil {
		t.Error("empty consumer key should fail")
	}
	held := &Credentials{ConsumerKey: "k", AccessToken: &Token{Key: "a", Secret: "b"}}
	if _, err := held.GetRequestToken(context.Background()); err == nil {
		t.Error("GetRequestToken with access token held should fail")
	}
	if err := NewCredentials("k").ExchangeRequestTokenForAccessToken(context.Background()); err == nil {
		t.Error("exchange without request token should fail")
	}
}

func TestAuthorizationEngine_ConfirmerFails(t *testing.T) {
	fake := &fakeLaunchpad{}
	srv := fake.server(t)

	engine := &AuthorizationEngine{
		Root:      srv.URL,
		Confirmer: confirmFunc(func(context.Context, string) error { return errors.New("stdin closed") }),
	}
	if err := engine.Authorize(context.Background(), NewCredentials("evergit")); err == nil {
		t.Fatal("Authorize() should fail when confirmation fails")
	}
	if _, ok := fake.headers["access"]; ok {
		t.Error("access-token endpoint must not be called")
	}
}

func TestClient_AuthorizePersistsOnlyOnSuccess(t *testing.T) {
	fake := &fakeLaunchpad{}
	srv := fake.server(t)
	store := &Store{Path: filepath.Join(t.TempDir(), "auth.json")}

	confirmed := 0
	client := NewClient(store, confirmFunc(func(context.Context, string) error {
		confirmed++
		return nil
	}), nil)
	client.Engine.Root = srv.URL

	if _, err := client.Authorize(context.Background()); err == nil {
		t.Fatal("Authorize() should fail before the user authorizes")
	}
	if tok, _ := store.Load(); tok != nil {
		t.Fatal("failed flow must not persist credentials")
	}

	fake.authorized = true
	tok, err := client.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if tok.Key != "acc-key" {
		t.Errorf("token = %+v", tok)
	}
	stored, _ := store.Load()
	if stored == nil || stored.Secret != "acc-secret" {
		t.Fatalf("stored = %+v", stored)
	}

	// A stored token short-circuits the flow.
	if _, err := client.Authorize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if confirmed != 2 {
		t.Errorf("confirmer calls = %d, want 2", confirmed)
	}

	if err := client.Reset(); err != nil {
		t.Fatal(err)
	}
	if tok, _ := store.Load(); tok != nil {
		t.Error("Reset() should clear the store")
	}
}

func TestClient_AuthorizeWithoutEngine(t *testing.T) {
	client := &Client{ConsumerKey: "evergit", Store: &Store{Path: filepath.Join(t.TempDir(), "auth.json")}}
	_, err := client.Authorize(context.Background())
	if !failure.Is(err, failure.MissingCredential) {
		t.Fatalf("err = %v, want MissingCredential", err)
	}
}

func TestClient_SignedGet(t *testing.T) {
	fake := &fakeLaunchpad{}
	srv := fake.server(t)
	client := &Client{ConsumerKey: DefaultConsumerKey}

	body, err := client.SignedGet(context.Background(), srv.URL+"/1.0/bugs/42", &Token{Key: "acc-key", Secret: "acc-secret"})
	if err != nil {
		t.Fatalf("SignedGet() error = %v", err)
	}
	if string(body) != `{"id":42}` {
		t.Errorf("body = %s", body)
	}

	h := parseHeader(t, fake.headers["resource"])
	want := map[string]string{
		"oauth_consumer_key":     "evergit",
		"oauth_token":            "acc-key",
		"oauth_signature_method": "PLAINTEXT",
		"oauth_signature":        "&acc-secret",
	}
	for k, v := range want {
		if h[k] != v {
			t.Errorf("header %s = %q, want %q", k, h[k], v)
		}
	}

	_, err = client.SignedGet(context.Background(), srv.URL+"/1.0/bugs/42", &Token{Key: "acc-key", Secret: "wrong"})
	if !failure.Is(err, failure.AuthRejected) {
		t.Fatalf("err = %v, want AuthRejected", err)
	}
	if !strings.Contains(err.Error(), "evergit auth --reset") {
		t.Errorf("message = %q, want reset hint", err.Error())
	}

	_, err = client.SignedGet(context.Background(), srv.URL+"/1.0/nothing", &Token{Key: "acc-key", Secret: "acc-secret"})
	if !failure.Is(err, failure.ResourceNotFound) {
		t.Errorf("err = %v, want ResourceNotFound", err)
	}
}

func TestClient_SignedGetTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := &Client{ConsumerKey: "evergit", HTTP: &http.Client{Timeout: 20 * time.Millisecond}}
	_, err := client.SignedGet(context.Background(), srv.URL, &Token{Key: "a", Secret: "b"})
	if !failure.Is(err, failure.NetworkTimeout) {
		t.Fatalf("err = %v, want NetworkTimeout", err)
	}
}
