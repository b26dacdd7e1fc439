package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"hostel-concierge/internal/domain"
	"hostel-concierge/internal/logger"
)

const (
	defaultHistoryLimit = 10
	defaultModel        = "gpt-4o"
)

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type LLMClient interface {
	Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error)
}

// ArtifactLister lists a staff member's requests and tasks.
type ArtifactLister interface {
	ListRequests(ctx context.Context, userID, branchID int) ([]domain.Artifact, error)
	ListTasks(ctx context.Context, userID, branchID int) ([]domain.Artifact, error)
}

// ContextUpdater patches the conversation from tool handlers.
type ContextUpdater interface {
	Update(ctx context.Context, conv domain.Conversation, patch domain.Patch) (domain.Conversation, error)
}

// AssistantConfig holds model settings.
type AssistantConfig struct {
	ParamPrefix  string
	Model        string
	Temperature  float64
	MaxTokens    int
	HistoryLimit int
}

// AssistantService answers free-form messages with a language model that may
// call tools against the backend.
type AssistantService struct {
	params     ParamGetter
	llm        LLMClient
	transcript Transcript
	artifacts  ArtifactLister
	bookings   Bookings
	store      ContextUpdater
	cfg        AssistantConfig
	log        logger.Logger
	now        func() time.Time

	cacheMu      sync.RWMutex
	cacheLoaded  bool
	pinnedPrompt string
}

func NewAssistantService(p ParamGetter, llm LLMClient, transcript Transcript, artifacts ArtifactLister, bookings Bookings, store ContextUpdater, cfg AssistantConfig, log logger.Logger) (*AssistantService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if artifacts == nil {
		return nil, errors.New("usecase: artifact lister must not be nil")
	}
	if bookings == nil {
		return nil, errors.New("usecase: bookings must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: context updater must not be nil")
	}
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if cfg.ParamPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &AssistantService{
		params:     p,
		llm:        llm,
		transcript: transcript,
		artifacts:  artifacts,
		bookings:   bookings,
		store:      store,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}, nil
}

// GenerateResponse runs the two-call tool loop. The first call may request
// tools; their results are fed to a second call that must produce text.
func (s *AssistantService) GenerateResponse(ctx context.Context, in AssistantInput) (string, error) {
	if err := s.ensureConfig(ctx); err != nil {
		return "", newError(ErrorInternal, "ssm_load_error", err)
	}

	pc := promptContext{
		pinnedPrompt: s.pinnedPrompt,
		language:     in.Language,
		user:         in.User,
		state:        in.Conversation.State,
		booking:      in.Conversation.Booking(),
		missing:      in.Missing,
		today:        s.now(),
	}
	history := s.history(ctx, in.Conversation)
	tools := toolDefinitions(in.User != nil)

	first, err := s.llm.Complete(ctx, s.request(buildFirstMessages(pc, history, in.Text), tools))
	if err != nil {
		return "", classifyUpstream(err, "openai_error")
	}
	if len(first.ToolCalls) == 0 {
		return nonEmpty(first.Content)
	}

	run := &toolRun{svc: s, in: in, conv: in.Conversation}
	results := make([]domain.ChatMessage, 0, len(first.ToolCalls))
	for _, call := range first.ToolCalls {
		results = append(results, domain.ChatMessage{
			Role:       "tool",
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    run.execute(ctx, call),
		})
	}

	second, err := s.llm.Complete(ctx, s.request(buildFollowUpMessages(pc, history, in.Text, first.ToolCalls, results), nil))
	if err != nil {
		return "", classifyUpstream(err, "openai_followup_error")
	}
	return nonEmpty(second.Content)
}

func (s *AssistantService) request(messages []domain.ChatMessage, tools []domain.ToolDefinition) domain.ChatRequest {
	return domain.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		Tools:       tools,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}
}

func nonEmpty(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", newError(ErrorUpstream, "openai_empty_response", nil)
	}
	return content, nil
}

// history is best effort; a failed read yields no history.
func (s *AssistantService) history(ctx context.Context, conv domain.Conversation) []domain.TranscriptEntry {
	if s.transcript == nil || conv.ID == "" {
		return nil
	}
	entries, err := s.transcript.RecentMessages(ctx, conv.Key(), s.cfg.HistoryLimit)
	if err != nil {
		s.log.WithError(err).Warn("load transcript history", map[string]interface{}{
			"phone":     conv.PhoneNumber,
			"branch_id": conv.BranchID,
		})
		return nil
	}
	return entries
}

func (s *AssistantService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	pinned, err := s.params.GetParameter(ctx, s.cfg.ParamPrefix+"/pinned_prompt")
	if err != nil {
		return fmt.Errorf("usecase: load pinned prompt: %w", err)
	}
	s.pinnedPrompt = strings.TrimSpace(pinned)
	s.cacheLoaded = true
	return nil
}
