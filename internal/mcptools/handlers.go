package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/logging"
	"github.com/harsh7800/adofly/internal/orchestrator"
	"github.com/harsh7800/adofly/internal/progress"
	"github.com/harsh7800/adofly/internal/runs"
	"github.com/harsh7800/adofly/internal/stage"
	"github.com/harsh7800/adofly/internal/store"
)

// DefaultUser owns creatives generated through MCP.
const DefaultUser = "mcp"

// AdService handles MCP tool calls. It runs each request synchronously
// through the generation pipeline.
type AdService struct {
	exec   runs.Executor
	store  store.Store
	user   string
	logger *slog.Logger
}

// Option configures an AdService.
type Option func(*AdService)

// WithStore saves generated creatives to st and enables list_ad_creatives.
func WithStore(st store.Store) Option {
	return func(s *AdService) { s.store = st }
}

// WithUser sets the user id creatives are saved under.
func WithUser(id string) Option {
	return func(s *AdService) { s.user = id }
}

// WithLogger sets the service's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *AdService) { s.logger = l }
}

// NewAdService creates an AdService that runs requests with exec.
func NewAdService(exec runs.Executor, opts ...Option) *AdService {
	s := &AdService{exec: exec, user: DefaultUser}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Or(s.logger)
	return s
}

func parseRequest(raw map[string]any) (creative.AdRequest, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return creative.AdRequest{}, fmt.Errorf("encode request: %w", err)
	}
	return creative.ParseRequest(data)
}

// Generate runs one request and returns the final steps with either the
// creative or the failure that ended the run.
func (s *AdService) Generate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateInput,
) (*mcp.CallToolResult, GenerateOutput, error) {
	req, err := parseRequest(input.Request)
	if err != nil {
		var verr *creative.ValidationError
		if errors.As(err, &verr) {
			return nil, GenerateOutput{Status: "invalid", Steps: progress.Initial(), Violations: verr.Violations}, nil
		}
		return nil, GenerateOutput{}, err
	}

	id := uuid.NewString()
	logger := logging.ForRun(s.logger, id, s.user)
	steps := progress.Initial()
	c, err := s.exec(logging.NewContext(ctx, logger), req, func(ev orchestrator.Event) {
		steps = progress.Apply(steps, ev)
	})
	if err != nil {
		out := GenerateOutput{Status: "failed", Steps: steps}
		var f *stage.Failure
		if errors.As(err, &f) {
			out.Failure = f
		} else {
			out.Failure = &stage.Failure{Kind: stage.UpstreamError, Message: err.Error()}
		}
		return nil, out, nil
	}

	if s.store != nil {
		rec := store.Record{ID: id, UserID: s.user, Request: req, Creative: *c, CreatedAt: time.Now().UTC()}
		if err := s.store.Save(ctx, rec); err != nil {
			logger.Error("persist creative failed", slog.Any("error", err))
		}
	}
	return nil, GenerateOutput{Status: "completed", Steps: steps, Creative: c}, nil
}

// Validate normalizes and checks a request without running it.
func (s *AdService) Validate(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ValidateInput,
) (*mcp.CallToolResult, ValidateOutput, error) {
	req, err := parseRequest(input.Request)
	if err != nil {
		var verr *creative.ValidationError
		if errors.As(err, &verr) {
			return nil, ValidateOutput{Violations: verr.Violations}, nil
		}
		return nil, ValidateOutput{}, err
	}
	return nil, ValidateOutput{Valid: true, Normalized: &req}, nil
}

// List returns the creatives saved by this service's user.
func (s *AdService) List(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListInput,
) (*mcp.CallToolResult, ListOutput, error) {
	if s.store == nil {
		return nil, ListOutput{}, errors.New("no creative store configured")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	recs, err := s.store.ListByUser(ctx, s.user, limit)
	if err != nil {
		return nil, ListOutput{}, fmt.Errorf("list creatives: %w", err)
	}
	if recs == nil {
		recs = []store.Record{}
	}
	return nil, ListOutput{Creatives: recs}, nil
}
