package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/nl2sql-api/internal/dto"
	"github.com/noah-isme/nl2sql-api/internal/evaluation"
	"github.com/noah-isme/nl2sql-api/internal/middleware"
	"github.com/noah-isme/nl2sql-api/internal/models"
	"github.com/noah-isme/nl2sql-api/internal/observability"
	"github.com/noah-isme/nl2sql-api/internal/repository"
)

// ErrEvaluationNotFound indicates the requested run does not exist.
var ErrEvaluationNotFound = errors.New("evaluation run not found")

// ProgressPublisher fans evaluation events out to other processes. *nats.Conn satisfies it.
type ProgressPublisher interface {
	Publish(subject string, data []byte) error
}

// EventFunc receives every event of a run in order.
type EventFunc func(event dto.EvaluationEvent)

// EvaluationServiceConfig carries the optional collaborators of the evaluation service.
type EvaluationServiceConfig struct {
	Repository  repository.EvaluationRepository
	Publisher   ProgressPublisher
	ChannelBase string
	Model       string
	Timeout     time.Duration
}

// EvaluationService runs the evaluation corpus and keeps the history of runs.
type EvaluationService interface {
	Run(ctx context.Context, emit EventFunc) dto.EvaluationReport
	List(ctx context.Context, req dto.EvaluationListRequest) (dto.EvaluationListResponse, error)
	Get(ctx context.Context, id string) (dto.EvaluationRunResponse, error)
}

type evaluationService struct {
	harness   *evaluation.Harness
	repo      repository.EvaluationRepository
	publisher ProgressPublisher
	subject   string
	model     string
	timeout   time.Duration
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

// NewEvaluationService wraps harness. Without a repository runs are not persisted; without a
// publisher events stay in-process.
func NewEvaluationService(harness *evaluation.Harness, cfg EvaluationServiceConfig, logger zerolog.Logger) EvaluationService {
	subject := ""
	if base := strings.TrimSpace(cfg.ChannelBase); base != "" {
		subject = strings.ReplaceAll(base, ":", ".") + ".evaluation.progress"
	}

	return &evaluationService{
		harness:   harness,
		repo:      cfg.Repository,
		publisher: cfg.Publisher,
		subject:   subject,
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		logger:    logger.With().Str("component", "evaluation_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/nl2sql-api/internal/service/evaluation"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *evaluationService) Run(parent context.Context, emit EventFunc) dto.EvaluationReport {
	runID := s.newID()
	logger := middleware.LoggerFromContext(parent, s.logger).With().Str("run_id", runID).Logger()
	ctx, span := s.tracer.Start(parent, "evaluation.run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	send := func(event dto.EvaluationEvent) {
		event.RunID = runID
		s.publish(logger, event)
		if emit != nil {
			emit(event)
		}
	}

	startedAt := s.now().UTC()
	send(dto.EvaluationEvent{Type: dto.EventStart, Message: "Starting evaluation..."})

	report := s.harness.Run(ctx, func(index, total int, description, status string, result evaluation.Result) {
		caseResult := result
		send(dto.EvaluationEvent{
			Type:            dto.EventProgress,
			Current:         index,
			Total:           total,
			Description:     description,
			Status:          status,
			ProgressPercent: progressPercent(index, total),
			Result:          &caseResult,
		})
	})
	completedAt := s.now().UTC()
	logger.Info().
		Int("passed", report.Metrics.PassedTests).
		Int("total", report.Metrics.TotalTests).
		Str("error", report.Error).
		Msg("evaluation run finished")

	status := models.RunStatusCompleted
	if report.Error != "" {
		status = models.RunStatusFailed
		span.SetStatus(codes.Error, report.Error)
	} else {
		observability.EvaluationAccuracy().Set(report.Metrics.Accuracy)
	}
	observability.EvaluationRuns().WithLabelValues(status).Inc()
	span.SetAttributes(
		attribute.Int("passed", report.Metrics.PassedTests),
		attribute.Int("total", report.Metrics.TotalTests),
	)

	out := dto.EvaluationReport{
		Results: report.Results,
		Metrics: report.Metrics,
		Error:   report.Error,
	}

	if s.repo != nil {
		run := dto.NewEvaluationRunModel(runID, s.model, startedAt, completedAt, report)
		if err := s.repo.Create(context.WithoutCancel(ctx), &run); err != nil {
			logger.Warn().Err(err).Msg("failed to persist evaluation run")
		} else {
			out.RunID = runID
		}
	}

	if report.Error != "" {
		send(dto.EvaluationEvent{Type: dto.EventError, Message: report.Error, Results: &out})
	} else {
		send(dto.EvaluationEvent{Type: dto.EventComplete, Results: &out})
	}

	return out
}

func (s *evaluationService) List(ctx context.Context, req dto.EvaluationListRequest) (dto.EvaluationListResponse, error) {
	if s.repo == nil {
		return dto.EvaluationListResponse{Items: []dto.EvaluationRunResponse{}}, nil
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	runs, total, err := s.repo.List(ctx, repository.EvaluationFilter{Page: page, PageSize: pageSize})
	if err != nil {
		return dto.EvaluationListResponse{}, fmt.Errorf("list evaluation runs: %w", err)
	}

	items := make([]dto.EvaluationRunResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, dto.NewEvaluationRunResponse(run))
	}

	return dto.EvaluationListResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

func (s *evaluationService) Get(ctx context.Context, id string) (dto.EvaluationRunResponse, error) {
	if s.repo == nil {
		return dto.EvaluationRunResponse{}, ErrEvaluationNotFound
	}

	run, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationRunResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationRunResponse{}, fmt.Errorf("load evaluation run: %w", err)
	}

	return dto.NewEvaluationRunResponse(run), nil
}

func (s *evaluationService) publish(logger zerolog.Logger, event dto.EvaluationEvent) {
	if s.publisher == nil || s.subject == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(s.subject, payload); err != nil {
		logger.Warn().Err(err).Str("event", event.Type).Msg("failed to publish evaluation event")
	}
}

func progressPercent(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(index) / float64(total) * 100
}
