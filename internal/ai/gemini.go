package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiProvider wraps a process-wide genai client. Create it once at startup
// and share it; the underlying client is safe for concurrent use.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// mapRole normalizes caller roles to Gemini's tags: "user" passes through,
// everything else becomes "model".
func mapRole(role string) string {
	if role == "user" {
		return "user"
	}
	return "model"
}

func (p *GeminiProvider) session(messages []Message) (*genai.ChatSession, genai.Text, error) {
	if len(messages) == 0 {
		return nil, "", errors.New("gemini: empty message history")
	}
	model := p.client.GenerativeModel(p.model)
	cs := model.StartChat()
	for _, m := range messages[:len(messages)-1] {
		cs.History = append(cs.History, &genai.Content{
			Role:  mapRole(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return cs, genai.Text(messages[len(messages)-1].Content), nil
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	cs, last, err := p.session(messages)
	if err != nil {
		return "", err
	}
	resp, err := cs.SendMessage(ctx, last)
	if err != nil {
		return "", err
	}
	return collectText(resp), nil
}

// StreamChat forwards response fragments in arrival order. Both channels are
// closed when the stream ends; at most one error is sent.
func (p *GeminiProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		cs, last, err := p.session(messages)
		if err != nil {
			errs <- err
			return
		}

		iter := cs.SendMessageStream(ctx, last)
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			if text := collectText(resp); text != "" {
				if !emit(ctx, chunks, text) {
					return
				}
			}
		}
	}()

	return chunks, errs
}

// emit forwards one fragment unless the consumer stopped reading; a full
// buffer must not pin the producer goroutine past cancellation.
func emit(ctx context.Context, chunks chan<- string, text string) bool {
	select {
	case chunks <- text:
		return true
	case <-ctx.Done():
		return false
	}
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
	}
	return b.String()
}

const classifyPrompt = `You are an expert agricultural pest identification specialist. Analyze this plant image for pests and diseases.

Respond ONLY with valid JSON (no markdown, no extra text) with this exact structure:
{
  "pest_name": "name of pest or disease, or 'none' if no issues found",
  "confidence": "high|medium|low",
  "affected_part": "description of which plant part is affected",
  "treatment": "detailed treatment recommendation",
  "severity": "mild|moderate|severe",
  "description": "brief description of the condition"
}`

// ClassifyImage runs the vision model over an inline image. mimeType must be
// one of the formats Gemini accepts for inline data (e.g. "image/jpeg").
func (p *GeminiProvider) ClassifyImage(ctx context.Context, mimeType string, data []byte) (string, error) {
	format := strings.TrimPrefix(mimeType, "image/")
	model := p.client.GenerativeModel(p.model)
	resp, err := model.GenerateContent(ctx, genai.ImageData(format, data), genai.Text(classifyPrompt))
	if err != nil {
		return "", err
	}
	text := collectText(resp)
	if text == "" {
		return "", errors.New("gemini: empty classification response")
	}
	return text, nil
}
