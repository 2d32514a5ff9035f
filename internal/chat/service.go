// Package chat runs a user message through the guardrail and retrieval
// pipeline and produces the assistant reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mia/apps/backend/internal/catalog"
	"mia/apps/backend/internal/clinic"
	"mia/apps/backend/internal/guard"
	"mia/apps/backend/internal/intent"
	"mia/apps/backend/internal/llm"
	"mia/apps/backend/internal/redflag"
	"mia/apps/backend/internal/vademecum"
	"mia/apps/backend/internal/validator"
)

const (
	DefaultMaxTokens   = 800
	DefaultTemperature = 0.4
)

// Recorder observes pipeline outcomes.
type Recorder interface {
	ObserveResponse(responseType string)
	ObserveRedFlag(severity string)
}

type Response struct {
	ConversationID     string           `json:"conversationId"`
	Message            string           `json:"message"`
	ResponseType       ResponseType     `json:"responseType"`
	Products           []catalog.Card   `json:"products"`
	Clinics            []clinic.Card    `json:"clinics"`
	TokensUsed         int              `json:"tokensUsed"`
	ProcessingTimeMs   int64            `json:"processingTimeMs"`
	Severity           redflag.Severity `json:"severity,omitempty"`
	AwaitingPostalCode bool             `json:"awaitingPostalCode,omitempty"`
	IsAlternative      bool             `json:"isAlternative,omitempty"`
	Intent             string           `json:"intent,omitempty"`
}

type Config struct {
	MaxMessageLength int
	HistoryTurns     int
	MaxTokens        int
	Temperature      float64
}

type Deps struct {
	Conversations ConversationStore
	RedFlags      *redflag.Detector
	Gate          *guard.Gate
	Classifier    *intent.Classifier
	Engine        *catalog.Engine
	Vademecum     *vademecum.Searcher
	FAQs          FAQStore
	Clinics       *clinic.Directory
	Prompts       *PromptProvider
	Generator     llm.Generator
	Validator     *validator.Validator
	Recorder      Recorder
}

type Service struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
}

func NewService(cfg Config, deps Deps, logger *zap.Logger) *Service {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultMaxMessageLength
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = DefaultHistoryTurns
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = DefaultTemperature
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, deps: deps, logger: logger, now: time.Now}
}

// ProcessMessage answers one user message. A postal code is handled first,
// then emergencies, medical requests and prescription requests short-circuit
// with fixed templates; everything else goes to the generator. Only invalid
// requests and persistence failures are returned as errors.
func (s *Service) ProcessMessage(ctx context.Context, req Request) (Response, error) {
	start := s.now()
	if err := req.Validate(s.cfg.MaxMessageLength); err != nil {
		return Response{}, err
	}
	message := strings.TrimSpace(req.Message)

	convID, err := s.deps.Conversations.EnsureConversation(ctx, strings.TrimSpace(req.ConversationID), req.SessionID, req.ProductContext)
	if err != nil {
		return Response{}, fmt.Errorf("ensure conversation: %w", err)
	}
	if err := s.deps.Conversations.AppendMessage(ctx, convID, Message{Role: llm.RoleUser, Content: message}); err != nil {
		return Response{}, fmt.Errorf("save user message: %w", err)
	}

	var resp Response
	if code, ok := clinic.ExtractPostalCode(message); ok {
		resp, err = s.clinicReply(ctx, convID, code)
	} else if flag := s.deps.RedFlags.Detect(ctx, message); flag.IsRedFlag {
		resp, err = s.emergencyReply(ctx, convID, flag)
	} else if decision := s.deps.Gate.Check(message); decision.Outcome != guard.OutcomeNone {
		resp, err = s.limitReply(ctx, convID, decision)
	} else {
		resp, err = s.generate(ctx, convID, message, req.ProductContext, start)
	}
	if err != nil {
		return Response{}, err
	}
	if err := s.deps.Conversations.Touch(ctx, convID); err != nil {
		return Response{}, fmt.Errorf("update conversation: %w", err)
	}

	resp.ConversationID = convID
	if resp.ResponseType != ResponseRateLimited && resp.ResponseType != ResponseGeneratorError {
		resp.ProcessingTimeMs = s.now().Sub(start).Milliseconds()
	}
	if resp.Products == nil {
		resp.Products = []catalog.Card{}
	}
	if resp.Clinics == nil {
		resp.Clinics = []clinic.Card{}
	}
	if s.deps.Recorder != nil {
		s.deps.Recorder.ObserveResponse(string(resp.ResponseType))
	}
	s.logger.Info("chat message processed",
		zap.String("session_id", req.SessionID),
		zap.String("conversation_id", convID),
		zap.String("response_type", string(resp.ResponseType)),
		zap.Int64("processing_time_ms", resp.ProcessingTimeMs),
		zap.Int("products_recommended", len(resp.Products)),
	)
	return resp, nil
}

func (s *Service) clinicReply(ctx context.Context, convID, code string) (Response, error) {
	result, err := s.deps.Clinics.Lookup(ctx, code)
	if err != nil {
		s.logger.Warn("clinic lookup failed", zap.String("postal_code", code), zap.Error(err))
	}

	resp := Response{ResponseType: ResponseClinic, Message: NoClinicMessage, Clinics: []clinic.Card{}}
	if err == nil && result.Exact && len(result.Clinics) > 0 {
		resp.Message = clinic.FormatForChat(result.Clinics)
		resp.Clinics = clinic.Cards(result.Clinics)
	}
	if err := s.saveAssistant(ctx, convID, Message{Content: resp.Message, ResponseType: ResponseClinic}); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (s *Service) emergencyReply(ctx context.Context, convID string, flag redflag.Result) (Response, error) {
	if err := s.deps.Conversations.MarkEmergency(ctx, convID); err != nil {
		return Response{}, fmt.Errorf("mark emergency: %w", err)
	}
	if err := s.saveAssistant(ctx, convID, Message{
		Content:      EmergencyMessage,
		ResponseType: ResponseEmergency,
		RedFlags:     flag.DetectedPatterns,
	}); err != nil {
		return Response{}, err
	}
	if s.deps.Recorder != nil {
		s.deps.Recorder.ObserveRedFlag(string(flag.Severity))
	}
	s.logger.Warn("emergency red flag",
		zap.String("conversation_id", convID),
		zap.String("severity", string(flag.Severity)),
		zap.String("category", flag.Category),
		zap.Strings("patterns", flag.DetectedPatterns),
	)
	return Response{
		Message:            EmergencyMessage,
		ResponseType:       ResponseEmergency,
		Severity:           flag.Severity,
		AwaitingPostalCode: true,
	}, nil
}

func (s *Service) limitReply(ctx context.Context, convID string, decision guard.Decision) (Response, error) {
	responseType, message := ResponseMedicalLimit, MedicalLimitMessage
	if decision.Outcome == guard.OutcomeRxLimit {
		responseType, message = ResponseRxLimit, RxLimitMessage
	}
	if err := s.saveAssistant(ctx, convID, Message{Content: message, ResponseType: responseType}); err != nil {
		return Response{}, err
	}
	s.logger.Info("medical request limited",
		zap.String("conversation_id", convID),
		zap.String("outcome", string(decision.Outcome)),
		zap.String("matched", decision.Matched),
	)
	return Response{Message: message, ResponseType: responseType, AwaitingPostalCode: true}, nil
}

func (s *Service) generate(ctx context.Context, convID, message string, page *ProductContext, start time.Time) (Response, error) {
	history, err := s.deps.Conversations.GetHistory(ctx, convID)
	if err != nil {
		return Response{}, fmt.Errorf("load history: %w", err)
	}

	detected := s.deps.Classifier.Detect(message)
	// History already ends with the current message.
	previous := history
	if n := len(previous); n > 0 && previous[n-1].Role == llm.RoleUser && previous[n-1].Content == message {
		previous = previous[:n-1]
	}
	terms := ExtractSearchTerms(previous, message)
	species := ExtractSpecies(previous, message)
	retrieval := s.deps.Engine.Retrieve(ctx, catalog.Query{Terms: terms, Species: species, Intent: detected})

	pc := PromptContext{
		ProductPage:   page,
		Products:      retrieval.Products,
		IsAlternative: retrieval.IsAlternative,
		SymptomHints:  detected.RedFlags,
	}
	if s.deps.Vademecum != nil {
		pc.Excerpts = s.deps.Vademecum.Search(ctx, message)
	}
	if s.deps.FAQs != nil && detected.HasStrategy(intent.StrategyFAQ, intent.StrategyPolicies) {
		faqs, err := s.deps.FAQs.SearchFAQs(ctx, message, defaultFAQLimit)
		if err != nil {
			s.logger.Warn("faq search failed", zap.Error(err))
		}
		pc.FAQs = faqs
	}

	completion, err := s.deps.Generator.Complete(ctx, llm.Request{
		SystemPrompt: AssembleSystemPrompt(s.deps.Prompts.SystemPrompt(ctx), pc),
		History:      LastTurns(history, s.cfg.HistoryTurns),
		MaxTokens:    s.cfg.MaxTokens,
		Temperature:  s.cfg.Temperature,
	})
	if err != nil {
		return s.degradedReply(ctx, convID, err)
	}

	validated := s.deps.Validator.Validate(ctx, completion.Text, retrieval.Products)
	shown := validator.SelectCards(validated.Text, retrieval.Products)
	ids := make([]int64, 0, len(shown))
	for _, p := range shown {
		ids = append(ids, p.ID)
	}
	if err := s.saveAssistant(ctx, convID, Message{
		Content:          validated.Text,
		ResponseType:     ResponseNormal,
		ProductIDs:       ids,
		TokensUsed:       completion.TokensUsed,
		ProcessingTimeMs: s.now().Sub(start).Milliseconds(),
	}); err != nil {
		return Response{}, err
	}
	return Response{
		Message:       validated.Text,
		ResponseType:  ResponseNormal,
		Products:      catalog.Cards(shown),
		TokensUsed:    completion.TokensUsed,
		IsAlternative: retrieval.IsAlternative && len(shown) > 0,
		Intent:        detected.Intent,
	}, nil
}

func (s *Service) degradedReply(ctx context.Context, convID string, cause error) (Response, error) {
	responseType, message := ResponseGeneratorError, GeneratorErrorMessage
	if errors.Is(cause, llm.ErrRateLimited) {
		responseType, message = ResponseRateLimited, RateLimitedMessage
	}
	s.logger.Error("generator call failed",
		zap.String("conversation_id", convID),
		zap.String("response_type", string(responseType)),
		zap.Error(cause),
	)
	if err := s.saveAssistant(ctx, convID, Message{Content: message, ResponseType: responseType}); err != nil {
		return Response{}, err
	}
	return Response{Message: message, ResponseType: responseType}, nil
}

func (s *Service) saveAssistant(ctx context.Context, convID string, msg Message) error {
	msg.Role = llm.RoleAssistant
	if err := s.deps.Conversations.AppendMessage(ctx, convID, msg); err != nil {
		return fmt.Errorf("save assistant message: %w", err)
	}
	return nil
}
