// Package openai provides the generative extraction provider using the
// OpenAI chat completions API. Proposed values are anchored back to
// the source text; values the model invents carry no offset and are
// capped by the confidence function downstream.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clauselens/clauselens/internal/core/domain"
	"github.com/clauselens/clauselens/internal/core/ports/driven"
)

// Ensure the provider implements the extraction interfaces.
var (
	_ driven.FieldExtractor      = (*Extractor)(nil)
	_ driven.ObligationExtractor = (*Extractor)(nil)
	_ driven.AnswerGenerator     = (*Extractor)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// methodGenerative tags candidates produced by the model.
const methodGenerative = "generative"

// maxPromptChars bounds the text sent per request.
const maxPromptChars = 48000

// Config holds configuration for the OpenAI extraction provider.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL. Can be changed for Azure OpenAI or
	// compatible APIs.
	BaseURL string

	// Model is the chat model to use.
	Model string

	// Timeout is the request timeout.
	Timeout time.Duration
}

// Extractor is the OpenAI extraction provider.
type Extractor struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// New creates the OpenAI extraction provider.
func New(cfg Config) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Extractor{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Name returns the provider name.
func (e *Extractor) Name() string { return domain.ExtractProviderOpenAI }

const fieldsPrompt = `You extract contract metadata. From the contract text, extract values
for exactly these fields: %s.

Rules:
- Use ONLY text that appears in the contract. Never invent values.
- Omit a field entirely when the contract does not state it.
- "certainty" is your own confidence in [0,1].

Respond with JSON: {"fields":[{"key":"...","value":"...","certainty":0.0}]}

Contract text:
%s`

// fieldsPayload is the model's JSON response shape for fields.
type fieldsPayload struct {
	Fields []struct {
		Key       string  `json:"key"`
		Value     string  `json:"value"`
		Certainty float64 `json:"certainty"`
	} `json:"fields"`
}

// ExtractFields asks the model for the requested fields and anchors
// each returned value back to the source text.
func (e *Extractor) ExtractFields(ctx context.Context, text string, keys []domain.FieldKey) ([]driven.FieldCandidate, error) {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	prompt := fmt.Sprintf(fieldsPrompt, strings.Join(names, ", "), truncate(text, maxPromptChars))

	content, err := e.chat(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	var payload fieldsPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, fmt.Errorf("openai: malformed extraction response: %w", err)
	}

	requested := make(map[domain.FieldKey]bool, len(keys))
	for _, k := range keys {
		requested[k] = true
	}

	var out []driven.FieldCandidate
	for _, f := range payload.Fields {
		key, err := domain.ParseFieldKey(f.Key)
		if err != nil || !requested[key] || strings.TrimSpace(f.Value) == "" {
			continue
		}
		cand := driven.FieldCandidate{
			Key:       key,
			Value:     strings.TrimSpace(f.Value),
			Certainty: f.Certainty,
			Method:    methodGenerative,
		}
		if i := strings.Index(text, cand.Value); i >= 0 {
			cand.Offset = &domain.TextOffset{Start: i, End: i + len(cand.Value)}
		}
		out = append(out, cand)
	}
	return out, nil
}

const obligationsPrompt = `You extract contractual obligations. From the contract text, list every
duty one party owes the other (clauses with shall/must/will/required).

Rules:
- "description" must quote the obligation sentence from the contract.
- "frequency", "due_date" and "penalty" are raw phrases from the text,
  empty when the contract does not state them.
- "certainty" is your own confidence in [0,1].

Respond with JSON: {"obligations":[{"description":"...","frequency":"",
"due_date":"","penalty":"","certainty":0.0}]}

Contract text:
%s`

type obligationsPayload struct {
	Obligations []struct {
		Description string  `json:"description"`
		Frequency   string  `json:"frequency"`
		DueDate     string  `json:"due_date"`
		Penalty     string  `json:"penalty"`
		Certainty   float64 `json:"certainty"`
	} `json:"obligations"`
}

// ExtractObligations asks the model for obligations and anchors each
// description to its sentence in the source text. Descriptions that
// cannot be located are dropped; an unanchored obligation cannot be
// cited or corrected.
func (e *Extractor) ExtractObligations(ctx context.Context, text string, includePenalties bool) ([]driven.ObligationCandidate, error) {
	prompt := fmt.Sprintf(obligationsPrompt, truncate(text, maxPromptChars))

	content, err := e.chat(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	var payload obligationsPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, fmt.Errorf("openai: malformed extraction response: %w", err)
	}

	var out []driven.ObligationCandidate
	for _, ob := range payload.Obligations {
		desc := strings.TrimSpace(ob.Description)
		if desc == "" {
			continue
		}
		i := strings.Index(text, desc)
		if i < 0 {
			continue
		}
		cand := driven.ObligationCandidate{
			Description:   desc,
			Certainty:     ob.Certainty,
			Offset:        domain.TextOffset{Start: i, End: i + len(desc)},
			FrequencyText: strings.TrimSpace(ob.Frequency),
			DueDateText:   strings.TrimSpace(ob.DueDate),
			Method:        methodGenerative,
		}
		if includePenalties {
			cand.PenaltyText = strings.TrimSpace(ob.Penalty)
		}
		out = append(out, cand)
	}
	return out, nil
}

const answerPrompt = `Answer the question using ONLY the context passages below. If the
passages do not contain the answer, say so plainly. Be concise.

Question: %s

Context passages:
%s

Answer:`

// GenerateAnswer synthesises an answer from the retrieved passages.
func (e *Extractor) GenerateAnswer(ctx context.Context, question string, contexts []string) (string, error) {
	var b strings.Builder
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c)
	}
	content, err := e.chat(ctx, fmt.Sprintf(answerPrompt, question, b.String()), false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// chat runs one chat completion and returns the first choice.
func (e *Extractor) chat(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	reqBody := chatRequest{
		Model:       e.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.1,
	}
	if jsonMode {
		reqBody.ResponseFormat = &respFormat{Type: "json_object"}
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: openai: reading response: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("%w: openai returned status %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("openai error: %s", chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", domain.ErrProviderUnavailable)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// Ping validates the API key against the /models endpoint without
// running inference.
func (e *Extractor) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: openai: ping failed: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (e *Extractor) Close() error {
	return nil
}

// stripFences removes a markdown code fence the model sometimes wraps
// JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
