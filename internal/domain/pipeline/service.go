package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clarion-chat/clarion/internal/domain/audit"
	"github.com/clarion-chat/clarion/internal/infra/config"
	"github.com/clarion-chat/clarion/internal/infra/llm"
	"github.com/clarion-chat/clarion/internal/infra/metrics"
)

// AuditLogger is the slice of the audit service the pipeline needs.
type AuditLogger interface {
	LogChat(ctx context.Context, e audit.ChatEvent) error
}

// ChatInput is one inbound chat request after transport decoding.
type ChatInput struct {
	Prompt     string
	History    []Turn
	Selections []Selection
	Topic      string // tracked topic from the previous turn, if any
}

// ChatOutput is the pipeline's answer plus the metadata callers echo back.
type ChatOutput struct {
	Response             string
	Topic                string
	TopicStatus          string
	Intent               string
	RAGResults           EnvelopeResult
	Service              string
	Model                string
	ToolCalls            []ToolCallRecord
	MaxIterationsReached bool
}

// Service orchestrates the six pipeline phases for each request. Requests
// are stateless and independent; all state below is read-only after startup.
type Service struct {
	topics     *TopicTracker
	collector  *Collector
	classifier *Classifier
	intentCfg  config.IntentConfig
	topicConn  string
	rules      []Rule
	generator  *Generator
	audit      AuditLogger
	log        *zap.Logger
}

// NewService wires the pipeline phases together. audit may be nil.
func NewService(
	topics *TopicTracker,
	collector *Collector,
	classifier *Classifier,
	generator *Generator,
	rules []Rule,
	intentCfg config.IntentConfig,
	topicConn string,
	auditLog AuditLogger,
	log *zap.Logger,
) *Service {
	return &Service{
		topics:     topics,
		collector:  collector,
		classifier: classifier,
		intentCfg:  intentCfg,
		topicConn:  topicConn,
		rules:      rules,
		generator:  generator,
		audit:      auditLog,
		log:        log,
	}
}

// Respond runs Topic, Retrieval, Intent, Profile, Match and Generate in
// strict sequence and returns the generated reply.
func (s *Service) Respond(ctx context.Context, in ChatInput) (*ChatOutput, error) {
	start := time.Now()
	traceID := uuid.NewString()
	log := s.log.With(zap.String("trace_id", traceID))

	topic := s.topics.Identify(ctx, in.Prompt, in.History, in.Topic, s.topicConn)
	log.Debug("topic resolved",
		zap.String("topic", topic.Topic), zap.String("status", topic.Status))

	env := s.collector.Collect(ctx, in.Prompt, topic.Topic, in.Topic, in.Selections)
	intent := s.classifier.Classify(ctx, topic.Topic, env, s.intentCfg)
	profile := BuildProfile(env, intent)

	event := audit.ChatEvent{
		TraceID:     traceID,
		Topic:       topic.Topic,
		TopicStatus: topic.Status,
		RAGResult:   string(profile.RAGResults),
		Intent:      profile.Intent,
		Service:     profile.Service,
		Collection:  profile.Collection,
		RuleIndex:   -1,
	}

	rule, err := Match(profile, s.rules)
	if err != nil {
		s.finish(ctx, log, event, audit.OutcomeNoRule, err, start)
		return nil, err
	}
	event.RuleIndex = rule.Index
	event.Connection = rule.Connection
	event.Model = rule.Model

	result, err := s.generator.Generate(ctx, profile, rule, in.Prompt, in.History)
	if err != nil {
		outcome := audit.OutcomeProviderErr
		if pe, ok := llm.AsProviderError(err); ok && pe.RateLimited() {
			outcome = audit.OutcomeRateLimited
		}
		s.finish(ctx, log, event, outcome, err, start)
		return nil, err
	}
	event.ToolCalls = len(result.ToolCalls)
	s.finish(ctx, log, event, audit.OutcomeOK, nil, start)

	return &ChatOutput{
		Response:             result.Content,
		Topic:                topic.Topic,
		TopicStatus:          topic.Status,
		Intent:               profile.Intent,
		RAGResults:           profile.RAGResults,
		Service:              result.Connection,
		Model:                result.Model,
		ToolCalls:            result.ToolCalls,
		MaxIterationsReached: result.MaxIterationsReached,
	}, nil
}

// finish records metrics and the audit trail for one request.
func (s *Service) finish(ctx context.Context, log *zap.Logger, event audit.ChatEvent, outcome string, cause error, start time.Time) {
	elapsed := time.Since(start)
	metrics.ChatRequests.WithLabelValues(outcome).Inc()
	metrics.ChatDuration.Observe(elapsed.Seconds())

	event.Outcome = outcome
	event.LatencyMS = elapsed.Milliseconds()
	if cause != nil {
		event.Error = cause.Error()
		log.Warn("chat request failed", zap.String("outcome", outcome), zap.Error(cause))
	} else {
		log.Info("chat request completed",
			zap.String("outcome", outcome), zap.Duration("latency", elapsed))
	}

	if s.audit == nil {
		return
	}
	if err := s.audit.LogChat(ctx, event); err != nil {
		log.Warn("audit write failed", zap.Error(err))
	}
}
