package services

import (
  "bytes"
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "net/http"
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/types"
)

// ErrGenerationNotConfigured is returned when no API key is present. The
// feedback scheduler treats it like any other generation failure: blocked
// feedback plus a review task, never an error to the submission caller.
var ErrGenerationNotConfigured = errors.New("text generation api key not configured")

// TextGenerator produces the personalized weekly feedback text plus a
// style tag. Implementations may fail or be unconfigured.
type TextGenerator interface {
  Generate(ctx context.Context, member *types.Member, wk *types.KpiWeek) (text string, styleTag string, err error)
}

var feedbackStyles = []string{"motivierend", "direkt", "analytisch"}

type openAITextGenerator struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  httpClient *http.Client
}

func NewOpenAITextGenerator(log *logger.Logger) TextGenerator {
  baseURL := os.Getenv("OPENAI_BASE_URL")
  if baseURL == "" {
    baseURL = "https://api.openai.com"
  }
  model := os.Getenv("OPENAI_MODEL")
  if model == "" {
    model = "gpt-4o-mini"
  }
  timeoutSec := 60
  if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      timeoutSec = parsed
    }
  }
  return &openAITextGenerator{
    log:        log.With("service", "OpenAITextGenerator"),
    baseURL:    baseURL,
    apiKey:     os.Getenv("OPENAI_API_KEY"),
    model:      model,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
  }
}

func (g *openAITextGenerator) Generate(ctx context.Context, member *types.Member, wk *types.KpiWeek) (string, string, error) {
  if g.apiKey == "" {
    return "", "", ErrGenerationNotConfigured
  }
  style := feedbackStyles[wk.Week%len(feedbackStyles)]

  payload := map[string]any{
    "model": g.model,
    "messages": []map[string]string{
      {
        "role":    "system",
        "content": fmt.Sprintf("Du bist ein Vertriebscoach. Schreibe ein kurzes, %ses Wochenfeedback auf Deutsch.", style),
      },
      {
        "role":    "user",
        "content": buildFeedbackPrompt(member, wk),
      },
    },
  }
  raw, err := json.Marshal(payload)
  if err != nil {
    return "", "", err
  }

  req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(raw))
  if err != nil {
    return "", "", err
  }
  req.Header.Set("Content-Type", "application/json")
  req.Header.Set("Authorization", "Bearer "+g.apiKey)

  resp, err := g.httpClient.Do(req)
  if err != nil {
    return "", "", err
  }
  defer resp.Body.Close()
  body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
  if err != nil {
    return "", "", err
  }
  if resp.StatusCode < 200 || resp.StatusCode > 299 {
    return "", "", fmt.Errorf("text generation http %d: %s", resp.StatusCode, truncateForLog(string(body)))
  }

  var parsed struct {
    Choices []struct {
      Message struct {
        Content string `json:"content"`
      } `json:"message"`
    } `json:"choices"`
  }
  if err := json.Unmarshal(body, &parsed); err != nil {
    return "", "", fmt.Errorf("text generation response parse: %w", err)
  }
  if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
    return "", "", errors.New("text generation returned no content")
  }
  return strings.TrimSpace(parsed.Choices[0].Message.Content), style, nil
}

func buildFeedbackPrompt(member *types.Member, wk *types.KpiWeek) string {
  var b strings.Builder
  fmt.Fprintf(&b, "Mitglied: %s, KW %d/%d, Feeling %d/10.\n", member.Name, wk.Week, wk.Year, wk.Feeling)
  if wk.UmsatzIst != nil {
    fmt.Fprintf(&b, "Umsatz: %.0f (Ziel %.0f).\n", *wk.UmsatzIst, wk.UmsatzSollSnap)
  }
  if wk.KontakteIst != nil {
    fmt.Fprintf(&b, "Kontakte: %.0f (Ziel %.0f).\n", *wk.KontakteIst, wk.KontakteSollSnap)
  }
  if strings.TrimSpace(wk.Heldentat) != "" {
    fmt.Fprintf(&b, "Heldentat: %s\n", strings.TrimSpace(wk.Heldentat))
  }
  if strings.TrimSpace(wk.Blocker) != "" {
    fmt.Fprintf(&b, "Blocker: %s\n", strings.TrimSpace(wk.Blocker))
  }
  if strings.TrimSpace(wk.Challenge) != "" {
    fmt.Fprintf(&b, "Challenge: %s\n", strings.TrimSpace(wk.Challenge))
  }
  return b.String()
}

func truncateForLog(s string) string {
  if len(s) > 300 {
    return s[:300] + "..."
  }
  return s
}
