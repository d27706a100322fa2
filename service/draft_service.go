package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"karmaclaims-backend/llm"
	"karmaclaims-backend/models"
	"karmaclaims-backend/policy"
	"karmaclaims-backend/repository"

	"go.uber.org/zap"
)

// CompanyLookup resolves canonical company names. A miss yields a fallback profile.
type CompanyLookup interface {
	Lookup(name string) (models.CompanyProfile, bool)
	List() []models.CompanyProfile
}

// RetryConfig controls retries of rate-limited generation calls
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration // the nth retry waits n * BaseDelay
}

// DefaultRetryConfig returns the production retry policy
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, BaseDelay: 5 * time.Second}
}

const (
	defaultGenerationTimeout = 45 * time.Second
	counterTimeout           = 3 * time.Second
)

// Sampling parameters per operation
var (
	draftSampling  = llm.Request{Temperature: 0.7, MaxTokens: 1024, TopP: 0.9}
	chatSampling   = llm.Request{Temperature: 0.5, MaxTokens: 512, TopP: 0.9}
	triageSampling = llm.Request{Temperature: 0.2, MaxTokens: 400, TopP: 0.9}
)

// DraftService runs the grievance drafting pipeline
type DraftService struct {
	generator         llm.Generator
	embedder          llm.Embedder
	searcher          LegalSearcher
	directory         CompanyLookup
	policies          *policy.Set
	counter           CaseCounter
	logger            *zap.Logger
	retry             RetryConfig
	retrieval         RetrievalConfig
	generationTimeout time.Duration
	maxLength         int

	validator *Validator
	builder   *PromptBuilder
	planner   *RetrievalPlanner
}

// DraftServiceOption is a functional option for DraftService
type DraftServiceOption func(*DraftService)

// DraftWithGenerator sets the generation service
func DraftWithGenerator(gen llm.Generator) DraftServiceOption {
	return func(s *DraftService) {
		s.generator = gen
	}
}

// DraftWithEmbedder sets the embedding service used for retrieval
func DraftWithEmbedder(emb llm.Embedder) DraftServiceOption {
	return func(s *DraftService) {
		s.embedder = emb
	}
}

// DraftWithLegalSearcher sets the legal document store
func DraftWithLegalSearcher(searcher LegalSearcher) DraftServiceOption {
	return func(s *DraftService) {
		s.searcher = searcher
	}
}

// DraftWithCompanyDirectory sets the company directory
func DraftWithCompanyDirectory(dir CompanyLookup) DraftServiceOption {
	return func(s *DraftService) {
		s.directory = dir
	}
}

// DraftWithPolicies sets the citation and escalation policy data
func DraftWithPolicies(set *policy.Set) DraftServiceOption {
	return func(s *DraftService) {
		s.policies = set
	}
}

// DraftWithCaseCounter sets the dashboard counter
func DraftWithCaseCounter(counter CaseCounter) DraftServiceOption {
	return func(s *DraftService) {
		s.counter = counter
	}
}

// DraftWithLogger sets the logger
func DraftWithLogger(logger *zap.Logger) DraftServiceOption {
	return func(s *DraftService) {
		s.logger = logger
	}
}

// DraftWithRetryConfig sets the rate-limit retry policy
func DraftWithRetryConfig(cfg RetryConfig) DraftServiceOption {
	return func(s *DraftService) {
		s.retry = cfg
	}
}

// DraftWithRetrievalConfig sets the query planner configuration
func DraftWithRetrievalConfig(cfg RetrievalConfig) DraftServiceOption {
	return func(s *DraftService) {
		s.retrieval = cfg
	}
}

// DraftWithGenerationTimeout bounds each generation call
func DraftWithGenerationTimeout(d time.Duration) DraftServiceOption {
	return func(s *DraftService) {
		s.generationTimeout = d
	}
}

// DraftWithMaxComplaintLength sets the narrative cap
func DraftWithMaxComplaintLength(n int) DraftServiceOption {
	return func(s *DraftService) {
		s.maxLength = n
	}
}

// NewDraftService creates a new draft service. Policies and the company
// directory default to the embedded data.
func NewDraftService(opts ...DraftServiceOption) (*DraftService, error) {
	s := &DraftService{
		retry:             DefaultRetryConfig(),
		retrieval:         DefaultRetrievalConfig(),
		generationTimeout: defaultGenerationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.policies == nil {
		set, err := policy.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load default policies: %w", err)
		}
		s.policies = set
	}
	if s.directory == nil {
		dir, err := repository.NewCompanyDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to load company directory: %w", err)
		}
		s.directory = dir
	}
	if s.counter == nil {
		s.counter = NewAtomicCaseCounter()
	}
	if s.retry.Attempts <= 0 {
		s.retry.Attempts = 1
	}

	s.validator = NewValidator(s.maxLength)
	s.builder = NewPromptBuilder(s.policies)
	s.planner = NewRetrievalPlanner(s.generator, s.embedder, s.searcher, s.retrieval, s.logger.Named("retrieval"))
	return s, nil
}

// GenerateDraft validates a claim, routes it to the company's grievance
// officer and drafts the notice
func (s *DraftService) GenerateDraft(ctx context.Context, in models.ClaimInput) (*models.DraftResult, error) {
	if s.generator == nil {
		return nil, newDraftingFailed(ErrNoGenerator)
	}

	// 1. Validate
	claim, err := s.validator.ValidateClaim(in)
	if err != nil {
		return nil, err
	}

	// 2. Resolve company
	profile := s.lookupCompany(claim.CompanyName)

	// 3. Build prompt and generate
	req := draftSampling
	req.Messages = []llm.Message{
		{Role: llm.RoleSystem, Content: s.builder.BuildSystemPrompt(profile.Industry, profile.Regulator, claim.Amount)},
		{Role: llm.RoleUser, Content: BuildClaimMessage(claim, profile)},
	}
	resp, err := s.generateWithRetry(ctx, "draft", req)
	if err != nil {
		return nil, err
	}

	// 4. Assemble
	draft := AssembleDraft(resp.Text, claim, profile)
	s.recordDraft()

	s.logger.Info("draft generated",
		zap.String("company", profile.Name),
		zap.String("regulator", string(profile.Regulator)),
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return &draft, nil
}

// ChatRequest is one free-form question, optionally with an image
type ChatRequest struct {
	Message string
	Image   *llm.Image
}

// ChatResult is the advisory reply and the provisions it was grounded on
type ChatResult struct {
	Reply    string                     `json:"reply"`
	Sources  []models.LegalContextMatch `json:"sources,omitempty"`
	Degraded bool                       `json:"-"`
}

// Chat answers a question using retrieved law. Retrieval failures fall back to
// generic consumer protection framing and never surface as errors.
func (s *DraftService) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if s.generator == nil {
		return nil, newDraftingFailed(ErrNoGenerator)
	}

	message := strings.TrimSpace(req.Message)
	if message == "" && req.Image == nil {
		return nil, &ValidationError{Field: "message", Message: "must not be empty"}
	}
	if err := s.validator.CheckInjection("message", message); err != nil {
		return nil, err
	}
	message = s.validator.Truncate(message)
	if message == "" {
		message = "Please review the attached image."
	}

	rr := s.planner.Plan(ctx, message)

	genReq := chatSampling
	genReq.Messages = []llm.Message{
		{Role: llm.RoleSystem, Content: s.builder.BuildChatPrompt(rr.Context)},
		{Role: llm.RoleUser, Content: message, Image: req.Image},
	}
	resp, err := s.generateWithRetry(ctx, "chat", genReq)
	if err != nil {
		return nil, err
	}

	return &ChatResult{
		Reply:    strings.TrimSpace(resp.Text),
		Sources:  rr.Search.Matches,
		Degraded: rr.Degraded(),
	}, nil
}

// RecordWin adds a resolved case to the dashboard counters
func (s *DraftService) RecordWin(ctx context.Context, amount float64) error {
	if amount <= 0 {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	return s.counter.RecordWin(ctx, amount)
}

// Stats returns the dashboard counters
func (s *DraftService) Stats(ctx context.Context) (models.CaseStats, error) {
	return s.counter.Snapshot(ctx)
}

// Companies lists the directory
func (s *DraftService) Companies() []models.CompanyProfile {
	return s.directory.List()
}

func (s *DraftService) lookupCompany(name string) models.CompanyProfile {
	profile, found := s.directory.Lookup(name)
	if !found {
		s.logger.Info("company not in directory, using fallback profile", zap.String("company", name))
	}
	return profile
}

// generateWithRetry retries rate-limited calls with linear backoff. Any other
// failure is final. Exhausting attempts yields ServiceBusyError.
func (s *DraftService) generateWithRetry(ctx context.Context, op string, req llm.Request) (*llm.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		if attempt > 1 {
			delay := s.retry.BaseDelay * time.Duration(attempt-1)
			s.logger.Warn("generation rate limited, backing off",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, newDraftingFailed(ctx.Err())
			case <-time.After(delay):
			}
		}

		callCtx, cancel := withTimeout(ctx, s.generationTimeout)
		resp, err := s.generator.Generate(callCtx, req)
		cancel()

		if err == nil {
			generationAttempts.WithLabelValues(op, "success").Inc()
			return resp, nil
		}
		if !llm.IsRateLimited(err) {
			generationAttempts.WithLabelValues(op, "failed").Inc()
			s.logger.Error("generation failed", zap.String("operation", op), zap.Error(err))
			return nil, newDraftingFailed(err)
		}

		generationAttempts.WithLabelValues(op, "rate_limited").Inc()
		lastErr = err
	}

	s.logger.Error("generation retries exhausted",
		zap.String("operation", op),
		zap.Int("attempts", s.retry.Attempts),
		zap.Error(lastErr))
	return nil, &ServiceBusyError{Attempts: s.retry.Attempts, cause: lastErr}
}

// recordDraft bumps the counters without holding up the request
func (s *DraftService) recordDraft() {
	draftsGenerated.Inc()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), counterTimeout)
		defer cancel()
		if err := s.counter.RecordDraft(ctx); err != nil {
			s.logger.Warn("failed to record draft", zap.Error(err))
		}
	}()
}
