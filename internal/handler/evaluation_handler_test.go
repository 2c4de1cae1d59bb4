package handler_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nl2sql-api/internal/dto"
	"github.com/noah-isme/nl2sql-api/internal/evaluation"
	"github.com/noah-isme/nl2sql-api/internal/handler"
	"github.com/noah-isme/nl2sql-api/internal/service"
)

type mockEvaluationService struct {
	report   dto.EvaluationReport
	events   []dto.EvaluationEvent
	list     dto.EvaluationListResponse
	listReq  dto.EvaluationListRequest
	run      dto.EvaluationRunResponse
	getErr   error
	listErr  error
	runCalls int
}

func (m *mockEvaluationService) Run(_ context.Context, emit service.EventFunc) dto.EvaluationReport {
	m.runCalls++
	for _, event := range m.events {
		if emit != nil {
			emit(event)
		}
	}
	return m.report
}

func (m *mockEvaluationService) List(_ context.Context, req dto.EvaluationListRequest) (dto.EvaluationListResponse, error) {
	m.listReq = req
	return m.list, m.listErr
}

func (m *mockEvaluationService) Get(_ context.Context, id string) (dto.EvaluationRunResponse, error) {
	if m.getErr != nil {
		return dto.EvaluationRunResponse{}, m.getErr
	}
	return m.run, nil
}

func newEvaluationApp(svc service.EvaluationService) *fiber.App {
	app := fiber.New()
	handler.NewEvaluationHandler(svc, nil, zerologNop()).Register(app.Group("/api/v1"))
	return app
}

type reportEnvelope struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Data    dto.EvaluationReport `json:"data"`
}

func TestEvaluationHandlerRun(t *testing.T) {
	results := []evaluation.Result{{ID: "basic-count", IsCorrect: true}}
	svc := &mockEvaluationService{report: dto.EvaluationReport{
		RunID:   "run-1",
		Results: results,
		Metrics: evaluation.ComputeMetrics(results),
	}}

	resp, err := newEvaluationApp(svc).Test(httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body reportEnvelope
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "run-1", body.Data.RunID)
	require.Equal(t, 1.0, body.Data.Metrics.Accuracy)
	require.Len(t, body.Data.Metrics.CategoryBreakdown, 4)
}

func TestEvaluationHandlerRunPreconditionFailure(t *testing.T) {
	svc := &mockEvaluationService{report: dto.EvaluationReport{
		Results: []evaluation.Result{},
		Metrics: evaluation.ComputeMetrics(nil),
		Error:   "generation service is not configured or unreachable: generator unavailable",
	}}

	resp, err := newEvaluationApp(svc).Test(httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body reportEnvelope
	decodeResponse(t, resp, &body)
	require.False(t, body.Success)
	require.Equal(t, svc.report.Error, body.Message)
	require.Equal(t, 0, body.Data.Metrics.TotalTests)
}

func TestEvaluationHandlerStream(t *testing.T) {
	final := dto.EvaluationReport{RunID: "run-1", Results: []evaluation.Result{}}
	svc := &mockEvaluationService{events: []dto.EvaluationEvent{
		{Type: dto.EventStart, RunID: "run-1", Message: "Starting evaluation..."},
		{Type: dto.EventProgress, RunID: "run-1", Current: 1, Total: 2, Description: "Basic count query", Status: evaluation.StatusPass, ProgressPercent: 50},
		{Type: dto.EventProgress, RunID: "run-1", Current: 2, Total: 2, Description: "Sum aggregation", Status: evaluation.StatusFail, ProgressPercent: 100},
		{Type: dto.EventComplete, RunID: "run-1", Results: &final},
	}}

	resp, err := newEvaluationApp(svc).Test(httptest.NewRequest(http.MethodPost, "/api/v1/evaluate/stream", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	defer resp.Body.Close()

	var names []string
	var events []dto.EvaluationEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			names = append(names, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			var event dto.EvaluationEvent
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
			events = append(events, event)
		}
	}
	require.NoError(t, scanner.Err())

	require.Equal(t, []string{"start", "progress", "progress", "complete"}, names)
	require.Len(t, events, 4)
	require.Equal(t, 50.0, events[1].ProgressPercent)
	require.Equal(t, "Sum aggregation", events[2].Description)
	require.Equal(t, "run-1", events[3].Results.RunID)
	require.Equal(t, 1, svc.runCalls)
}

func TestEvaluationHandlerWebsocketRequiresUpgrade(t *testing.T) {
	svc := &mockEvaluationService{}

	resp, err := newEvaluationApp(svc).Test(httptest.NewRequest(http.MethodGet, "/api/v1/evaluate/ws", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
	require.Zero(t, svc.runCalls)
}

func TestEvaluationHandlerList(t *testing.T) {
	svc := &mockEvaluationService{list: dto.EvaluationListResponse{
		Items:      []dto.EvaluationRunResponse{{ID: "run-1", Status: "completed"}},
		Pagination: dto.PaginationMeta{Page: 2, PageSize: 5, TotalItems: 6, TotalPages: 2},
	}}
	app := newEvaluationApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/evaluations?page=2&page_size=5", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data dto.EvaluationListResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "run-1", body.Data.Items[0].ID)
	require.Equal(t, dto.EvaluationListRequest{Page: 2, PageSize: 5}, svc.listReq)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/evaluations?page=oops", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/evaluations?page_size=500", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEvaluationHandlerGet(t *testing.T) {
	svc := &mockEvaluationService{run: dto.EvaluationRunResponse{ID: "run-1", Status: "completed"}}
	resp, err := newEvaluationApp(svc).Test(httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/run-1", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	svc = &mockEvaluationService{getErr: service.ErrEvaluationNotFound}
	resp, err = newEvaluationApp(svc).Test(httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/missing", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	svc = &mockEvaluationService{getErr: errors.New("db down")}
	resp, err = newEvaluationApp(svc).Test(httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/run-1", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
