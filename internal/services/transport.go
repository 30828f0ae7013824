package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "time"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/utils"
)

// MessageTransport hands a message to the outbound gateway. Only the
// delivery sweep calls it; the dispatcher and scheduler just persist rows.
type MessageTransport interface {
  Send(ctx context.Context, channel, recipient, body string) error
}

type httpMessageTransport struct {
  log        *logger.Logger
  baseURL    string
  token      string
  httpClient *http.Client
}

// NewHTTPMessageTransport errors when MESSAGE_GATEWAY_URL is unset; main
// then skips starting the delivery worker and pending rows simply wait.
func NewHTTPMessageTransport(log *logger.Logger) (MessageTransport, error) {
  baseURL := utils.GetEnv("MESSAGE_GATEWAY_URL", "", log)
  if baseURL == "" {
    return nil, fmt.Errorf("missing MESSAGE_GATEWAY_URL")
  }
  token := utils.GetEnv("MESSAGE_GATEWAY_TOKEN", "", log)
  timeoutSec := utils.GetEnvAsInt("MESSAGE_GATEWAY_TIMEOUT_SECONDS", 15, log)
  return &httpMessageTransport{
    log:        log.With("service", "MessageTransport"),
    baseURL:    baseURL,
    token:      token,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
  }, nil
}

func (t *httpMessageTransport) Send(ctx context.Context, channel, recipient, body string) error {
  payload := map[string]string{
    "channel":   channel,
    "recipient": recipient,
    "body":      body,
  }
  raw, err := json.Marshal(payload)
  if err != nil {
    return err
  }
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/messages", bytes.NewReader(raw))
  if err != nil {
    return err
  }
  req.Header.Set("Content-Type", "application/json")
  if t.token != "" {
    req.Header.Set("Authorization", "Bearer "+t.token)
  }
  resp, err := t.httpClient.Do(req)
  if err != nil {
    return err
  }
  defer resp.Body.Close()
  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
    return fmt.Errorf("message gateway http %d: %s", resp.StatusCode, string(snippet))
  }
  return nil
}
