package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	analysis "github.com/takeawayhq/voicedesk/backend/internal/analysis/intent"
)

const systemPrompt = `You classify a single caller utterance from a takeaway phone line.
Pick exactly one intent from this list:
%s
Reply with a JSON object only: {"label": "<intent>", "confidence": <0..1>}.
Use "fallback.unknown" when nothing fits.`

const userPrompt = `Utterance: {utterance}`

// Config controls the intent classification service.
type Config struct {
	Enabled       bool
	MinConfidence float64
}

// Service predicts caller intent. When an LLM chat model is supplied it
// runs a classification chain and falls back to the keyword heuristic on
// any failure; without a model the heuristic runs alone. The model is
// compiled eagerly at construction, never lazily at request time.
type Service struct {
	enabled       bool
	minConfidence float64
	classifier    compose.Runnable[map[string]any, *schema.Message]
	fallback      func(string) analysis.Prediction
}

// NewService builds the classifier service. chatModel may be nil.
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	minConfidence := cfg.MinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.25
	}

	svc := &Service{
		enabled:       cfg.Enabled,
		minConfidence: minConfidence,
		fallback:      analysis.Classify,
	}

	if !cfg.Enabled || chatModel == nil {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(fmt.Sprintf(systemPrompt, strings.Join(analysis.All, "\n"))),
		schema.UserMessage(userPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile intent classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

type classifierPayload struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Predict classifies the utterance into an intent label plus confidence.
// Predictions below the confidence floor are reported as "no prediction"
// so the dialog's keyword guards take over.
func (s *Service) Predict(ctx context.Context, utterance string) analysis.Prediction {
	if s == nil || !s.enabled {
		return analysis.Disabled
	}

	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return analysis.Prediction{IsEnabled: true}
	}

	prediction := s.predictLLM(ctx, trimmed)
	if !prediction.Successful {
		prediction = s.fallback(trimmed)
	}

	if prediction.Successful && prediction.Confidence < s.minConfidence {
		return analysis.Prediction{Confidence: prediction.Confidence, IsEnabled: true}
	}
	return prediction
}

func (s *Service) predictLLM(ctx context.Context, utterance string) analysis.Prediction {
	if s.classifier == nil {
		return analysis.Prediction{IsEnabled: true}
	}

	msg, err := s.classifier.Invoke(ctx, map[string]any{"utterance": utterance})
	if err != nil {
		log.Printf("[intent] classifier invoke failed, using keyword fallback: %v", err)
		return analysis.Prediction{IsEnabled: true}
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return analysis.Prediction{IsEnabled: true}
	}

	payload, err := parseClassifierOutput(msg.Content)
	if err != nil {
		log.Printf("[intent] classifier output parse failed, using keyword fallback: %v", err)
		return analysis.Prediction{IsEnabled: true}
	}

	label := strings.TrimSpace(payload.Label)
	if !analysis.Known(label) {
		return analysis.Prediction{IsEnabled: true}
	}

	confidence := payload.Confidence
	if confidence <= 0 {
		confidence = 0.5
	}
	if confidence > 1 {
		confidence = 1
	}

	return analysis.Prediction{Label: strings.ToLower(label), Confidence: confidence, IsEnabled: true, Successful: true}
}

// parseClassifierOutput extracts the JSON object from the model reply,
// tolerating surrounding prose or code fences.
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}
