package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
)

// WebDriverProvider acquires sessions from a W3C WebDriver remote end
// (a selenium grid, chromedriver, geckodriver, ...). It is deliberately a
// thin protocol shim; everything above it sees only the Session interface.
type WebDriverProvider struct {
	endpoint string
	client   *http.Client
	log      log.Logger
}

// NewWebDriverProvider creates a provider talking to the given remote end,
// e.g. "http://localhost:4444".
func NewWebDriverProvider(endpoint string, logger log.Logger) *WebDriverProvider {
	if logger == nil {
		logger = log.New()
	}
	return &WebDriverProvider{
		endpoint: endpoint,
		client:   &http.Client{},
		log:      logger.New("component", "webdriver", "endpoint", endpoint),
	}
}

func (p *WebDriverProvider) Acquire(ctx context.Context, browserID string) (Session, error) {
	body := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": map[string]any{"browserName": browserID},
		},
	}
	var resp struct {
		Value struct {
			SessionID string `json:"sessionId"`
		} `json:"value"`
	}
	if err := p.do(ctx, http.MethodPost, p.endpoint+"/session", body, &resp); err != nil {
		return nil, fmt.Errorf("creating %s session: %w", browserID, err)
	}
	if resp.Value.SessionID == "" {
		return nil, fmt.Errorf("creating %s session: remote end returned no session id", browserID)
	}
	p.log.Debug("Acquired session", "browser", browserID, "session", resp.Value.SessionID)
	return &webDriverSession{
		provider: p,
		base:     fmt.Sprintf("%s/session/%s", p.endpoint, resp.Value.SessionID),
	}, nil
}

func (p *WebDriverProvider) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webdriver %s %s: status %d: %s", method, url, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type webDriverSession struct {
	provider *WebDriverProvider
	base     string
}

func (s *webDriverSession) Navigate(ctx context.Context, url string) error {
	return s.provider.do(ctx, http.MethodPost, s.base+"/url", map[string]any{"url": url}, nil)
}

func (s *webDriverSession) ExecuteScript(ctx context.Context, script string) (string, error) {
	body := map[string]any{
		"script": "return (" + script + ");",
		"args":   []any{},
	}
	var resp struct {
		Value json.RawMessage `json:"value"`
	}
	if err := s.provider.do(ctx, http.MethodPost, s.base+"/execute/sync", body, &resp); err != nil {
		return "", err
	}
	var str string
	if err := json.Unmarshal(resp.Value, &str); err == nil {
		return str, nil
	}
	return string(resp.Value), nil
}

func (s *webDriverSession) Screenshot(ctx context.Context) ([]byte, error) {
	var resp struct {
		Value string `json:"value"`
	}
	if err := s.provider.do(ctx, http.MethodGet, s.base+"/screenshot", nil, &resp); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(resp.Value)
}

func (s *webDriverSession) Close() error {
	return s.provider.do(context.Background(), http.MethodDelete, s.base, nil, nil)
}
