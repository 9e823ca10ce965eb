// Package main provides a CI-friendly HTTP smoke test for the vidtube
// session lifecycle.
//
// It validates, against a running server:
//   - registration (multipart, requires media storage configured)
//   - login -> access/refresh cookies + token pair
//   - authenticated /users/me with the access token
//   - refresh rotation -> new pair
//   - replay of the rotated-out refresh token is rejected (401)
//   - the winning pair keeps working
//   - logout -> refresh afterwards is rejected (401)
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginResult struct {
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	tokenPair
}

// tiny valid PNG header, enough for a smoke avatar upload
var avatarBytes = []byte("\x89PNG\r\n\x1a\nsmoke-avatar")

func main() {
	var (
		baseURL      = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		username     = flag.String("username", "", "Username (default: generated)")
		password     = flag.String("password", "smoke-pass-123", "Password")
		skipRegister = flag.Bool("skip-register", false, "Skip registration, log in with existing credentials")
		timeout      = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose      = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	user := strings.TrimSpace(*username)
	if user == "" {
		user = fmt.Sprintf("smoke%d", time.Now().UnixNano())
	}
	email := user + "@smoke.invalid"

	client := &http.Client{Timeout: *timeout}

	if !*skipRegister {
		mustRegister(client, *baseURL, user, email, *password, *verbose)
	}

	first := mustLogin(client, *baseURL, user, *password)
	if *verbose {
		fmt.Printf("login ok: user=%s\n", first.User.Username)
	}

	mustMe(client, *baseURL, first.AccessToken)

	second := mustRefresh(client, *baseURL, first.RefreshToken)
	if second.RefreshToken == first.RefreshToken {
		fatalf("rotation returned the same refresh token")
	}

	// The rotated-out token must be dead.
	assertRefreshRejected(client, *baseURL, first.RefreshToken, "replayed token")

	// The winner must still rotate.
	third := mustRefresh(client, *baseURL, second.RefreshToken)
	mustMe(client, *baseURL, third.AccessToken)

	mustLogout(client, *baseURL, third.AccessToken)
	assertRefreshRejected(client, *baseURL, third.RefreshToken, "post-logout token")

	fmt.Printf("OK: user=%s lifecycle register/login/refresh/replay/logout verified\n", user)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func mustRegister(client *http.Client, baseURL, username, email, password string, verbose bool) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"fullname": "Smoke Test",
		"email":    email,
		"username": username,
		"password": password,
	} {
		if err := mw.WriteField(k, v); err != nil {
			fatalf("register: write field %s: %v", k, err)
		}
	}
	fw, err := mw.CreateFormFile("avatar", "avatar.png")
	if err != nil {
		fatalf("register: create avatar part: %v", err)
	}
	if _, err := fw.Write(avatarBytes); err != nil {
		fatalf("register: write avatar: %v", err)
	}
	if err := mw.Close(); err != nil {
		fatalf("register: close multipart: %v", err)
	}

	resp, raw := doRequest(client, http.MethodPost, baseURL+"/users/register", "", mw.FormDataContentType(), &body)
	switch resp.StatusCode {
	case http.StatusCreated:
		if verbose {
			fmt.Printf("registered: %s\n", username)
		}
	case http.StatusConflict:
		if verbose {
			fmt.Printf("register: %s already exists, continuing\n", username)
		}
	case http.StatusBadRequest:
		if strings.Contains(string(raw), "avatar_required") {
			fatalf("register: server has no media storage configured; run with -skip-register or configure VIDTUBE_MEDIA_S3_*")
		}
		fatalf("register: status=%d body=%s", resp.StatusCode, raw)
	default:
		fatalf("register: status=%d body=%s", resp.StatusCode, raw)
	}
}

func mustLogin(client *http.Client, baseURL, username, password string) loginResult {
	body := mustJSON(map[string]string{"username": username, "password": password})
	resp, raw := doRequest(client, http.MethodPost, baseURL+"/users/login", "", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		fatalf("login: status=%d body=%s", resp.StatusCode, raw)
	}

	assertAuthCookies(resp, "login")

	var out loginResult
	if err := json.Unmarshal(raw, &out); err != nil {
		fatalf("login: bad response json: %v", err)
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		fatalf("login: missing token pair in response")
	}
	return out
}

func mustMe(client *http.Client, baseURL, accessToken string) {
	resp, raw := doRequest(client, http.MethodGet, baseURL+"/users/me", accessToken, "", nil)
	if resp.StatusCode != http.StatusOK {
		fatalf("me: status=%d body=%s", resp.StatusCode, raw)
	}
}

func mustRefresh(client *http.Client, baseURL, refreshToken string) tokenPair {
	body := mustJSON(map[string]string{"refreshToken": refreshToken})
	resp, raw := doRequest(client, http.MethodPost, baseURL+"/users/refresh", "", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		fatalf("refresh: status=%d body=%s", resp.StatusCode, raw)
	}

	assertAuthCookies(resp, "refresh")

	var out tokenPair
	if err := json.Unmarshal(raw, &out); err != nil {
		fatalf("refresh: bad response json: %v", err)
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		fatalf("refresh: missing token pair in response")
	}
	return out
}

func assertRefreshRejected(client *http.Client, baseURL, refreshToken, label string) {
	body := mustJSON(map[string]string{"refreshToken": refreshToken})
	resp, raw := doRequest(client, http.MethodPost, baseURL+"/users/refresh", "", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		fatalf("refresh %s: expected 401, got status=%d body=%s", label, resp.StatusCode, raw)
	}
}

func mustLogout(client *http.Client, baseURL, accessToken string) {
	resp, raw := doRequest(client, http.MethodPost, baseURL+"/users/logout", accessToken, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		fatalf("logout: status=%d body=%s", resp.StatusCode, raw)
	}
}

func assertAuthCookies(resp *http.Response, step string) {
	var access, refresh bool
	for _, c := range resp.Cookies() {
		switch c.Name {
		case "accessToken":
			access = c.Value != "" && c.HttpOnly
		case "refreshToken":
			refresh = c.Value != "" && c.HttpOnly
		}
	}
	if !access || !refresh {
		fatalf("%s: missing HttpOnly auth cookies (access=%v refresh=%v)", step, access, refresh)
	}
}

func doRequest(client *http.Client, method, rawURL, bearer, contentType string, body io.Reader) (*http.Response, []byte) {
	req, err := http.NewRequest(method, rawURL, body)
	if err != nil {
		fatalf("%s %s: %v", method, rawURL, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fatalf("%s %s: read body: %v", method, rawURL, err)
	}
	return resp, raw
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
