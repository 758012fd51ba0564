package exec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codedeck/server/internal/db"
)

// ErrNotConfigured is returned when the compiler API key is missing.
var ErrNotConfigured = errors.New("compiler API credentials not configured")

const defaultTimeout = 30 * time.Second

// Client calls the external code-compiler API. The upstream takes a
// form-encoded language id, program text and stdin, and answers with either
// a result or a compile/runtime error text. Results are memoized in sqlite
// since the upstream is slow and metered, and identical runs are
// deterministic from its point of view.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiHost    string
	database   *db.Database
}

// New builds a compiler client. database may be nil to disable caching.
func New(baseURL, apiKey, apiHost string, database *db.Database) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiHost:    apiHost,
		database:   database,
	}
}

type compilerResponse struct {
	Result string `json:"Result"`
	Errors string `json:"Errors"`
}

// Run executes source code remotely and returns its output. Compile and
// runtime errors from the program itself come back as ordinary output;
// only transport and configuration failures are errors.
func (c *Client) Run(ctx context.Context, language, code, input string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	key := db.CacheKey(language, code, input)
	if c.database != nil {
		cached, err := c.database.GetCachedResult(key)
		if err != nil {
			slog.Warn("exec cache lookup failed", "error", err)
		} else if cached != nil {
			slog.Debug("exec cache hit", "language", language)
			return cached.Output, nil
		}
	}

	form := url.Values{}
	form.Set("LanguageChoice", language)
	form.Set("Program", code)
	form.Set("Input", input)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build compiler request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("x-rapidapi-key", c.apiKey)
	if c.apiHost != "" {
		req.Header.Set("x-rapidapi-host", c.apiHost)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call compiler API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return "", fmt.Errorf("read compiler response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("compiler API returned %d", resp.StatusCode)
	}

	var result compilerResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode compiler response: %w", err)
	}

	output := result.Result
	if result.Errors != "" {
		output = result.Errors
	}
	if output == "" {
		output = "No output"
	}

	if c.database != nil {
		if err := c.database.PutCachedResult(key, language, output); err != nil {
			slog.Warn("exec cache store failed", "error", err)
		}
	}

	return output, nil
}
