package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestContext carries one scenario's HTTP state against a running server.
type TestContext struct {
	BaseURL    string
	HTTPClient *http.Client

	signingKey []byte
	issuer     string
	audience   string

	// users maps a scenario alias to its subject and role.
	users    map[string]user
	current  string
	values   map[string]string
	status   int
	body     []byte
	lastPath string
}

type user struct {
	id   string
	role string
}

// NewTestContext reads the target server from the environment.
func NewTestContext() *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimRight(os.Getenv("PROPNEST_E2E_URL"), "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		signingKey: []byte(envOr("PROPNEST_E2E_JWT_KEY", "dev-signing-key")),
		issuer:     envOr("JWT_ISSUER", "propnest"),
		audience:   envOr("JWT_AUDIENCE", "propnest-api"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.users = map[string]user{}
	tc.values = map[string]string{}
	tc.current = ""
	tc.status = 0
	tc.body = nil
	tc.lastPath = ""
}

// SignInAs makes alias the caller of subsequent requests, minting a user on
// first use. role is "user" or "admin".
func (tc *TestContext) SignInAs(alias, role string) {
	if _, ok := tc.users[alias]; !ok {
		tc.users[alias] = user{id: uuid.NewString(), role: role}
	}
	tc.current = alias
}

// SignOut makes subsequent requests anonymous.
func (tc *TestContext) SignOut() {
	tc.current = ""
}

func (tc *TestContext) token() (string, error) {
	u, ok := tc.users[tc.current]
	if !ok {
		return "", nil
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  u.id,
		"role": u.role,
		"iss":  tc.issuer,
		"aud":  []string{tc.audience},
		"iat":  now.Unix(),
		"exp":  now.Add(15 * time.Minute).Unix(),
		"jti":  uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.signingKey)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) PATCH(path string, body interface{}) error {
	return tc.do(http.MethodPatch, path, body, nil)
}

func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil, nil)
}

func (tc *TestContext) do(method, path string, body interface{}, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "propnest-e2e/1.0")
	token, err := tc.token()
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.body, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.status = resp.StatusCode
	tc.lastPath = path
	return nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	return tc.status
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.body
}

// GetResponseField resolves a dotted path such as "property.status" in the
// last JSON response. Numeric segments index into arrays.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal(tc.body, &doc); err != nil {
		return nil, fmt.Errorf("response from %s is not JSON: %w", tc.lastPath, err)
	}
	cur := doc
	for _, seg := range strings.Split(field, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("field %q not found in response", field)
			}
			cur = next
		case []interface{}:
			var idx int
			if _, err := fmt.Sscanf(seg, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", seg, field)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("field %q not found in response", field)
		}
	}
	return cur, nil
}

func (tc *TestContext) Save(key, value string) {
	tc.values[key] = value
}

func (tc *TestContext) Saved(key string) (string, error) {
	v, ok := tc.values[key]
	if !ok {
		return "", fmt.Errorf("nothing saved as %q", key)
	}
	return v, nil
}

// Expand substitutes {name} placeholders with saved values.
func (tc *TestContext) Expand(path string) string {
	for k, v := range tc.values {
		path = strings.ReplaceAll(path, "{"+k+"}", v)
	}
	return path
}
