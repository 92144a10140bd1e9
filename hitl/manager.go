// Package hitl manages human approval requests: creation, lookup, decisions,
// cancellation and lazy expiry.
package hitl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/telemetry"
)

// NewRequest holds the fields of a request to be created
type NewRequest struct {
	GateID      hrflow.GateID
	AgentID     string
	AgentType   string
	CompanyID   string
	Title       string
	Description string
	Data        map[string]any

	// Optional back-references
	WorkflowID string
	StepID     string
	SessionID  string

	// TimeoutHours overrides the gate default when positive
	TimeoutHours int
}

// Manager creates and resolves HITL requests
type Manager struct {
	store   hrflow.Store
	pub     hrflow.Publisher
	logger  zerolog.Logger
	config  hrflow.Config
	metrics *telemetry.Metrics
	now     func() time.Time
}

// Option configures the manager
type Option func(*Manager)

// WithLogger sets the manager logger
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the time source used for timestamps and expiry
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithConfig sets timeouts from cfg
func WithConfig(cfg hrflow.Config) Option {
	return func(m *Manager) {
		m.config = cfg.WithDefaults()
	}
}

// WithDefaultTimeout sets the timeout of non-critical gates
func WithDefaultTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.config.DefaultHITLTimeout = d
		}
	}
}

// WithMetrics sets the counters the manager records to
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a manager on store and publisher
func NewManager(store hrflow.Store, pub hrflow.Publisher, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		pub:     pub,
		logger:  hrflow.DefaultLogger(),
		config:  hrflow.DefaultConfig,
		metrics: telemetry.DefaultMetrics(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRequest persists a new pending request and indexes it under its company
func (m *Manager) CreateRequest(ctx context.Context, in NewRequest) (_ *hrflow.HITLRequest, err error) {
	ctx, span := telemetry.StartSpan(ctx, "hitl.CreateRequest",
		"gate_id", in.GateID.String(),
		"company_id", in.CompanyID,
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if in.GateID == "" {
		return nil, hrflow.ValidationError("gate id is required")
	}
	if in.CompanyID == "" {
		return nil, hrflow.ValidationError("company id is required")
	}

	timeout := time.Duration(in.TimeoutHours) * time.Hour
	if timeout <= 0 {
		timeout = timeoutFor(in.GateID, m.config)
	}

	now := m.now()
	expiresAt := now.Add(timeout)
	req := &hrflow.HITLRequest{
		RequestID:    uuid.New().String(),
		GateID:       in.GateID,
		AgentID:      in.AgentID,
		AgentType:    in.AgentType,
		WorkflowID:   in.WorkflowID,
		StepID:       in.StepID,
		CompanyID:    in.CompanyID,
		SessionID:    in.SessionID,
		Title:        in.Title,
		Description:  in.Description,
		Data:         in.Data,
		Status:       hrflow.RequestPending,
		TimeoutHours: int(timeout / time.Hour),
		RequestedAt:  now,
		ExpiresAt:    &expiresAt,
	}
	if req.Data == nil {
		req.Data = map[string]any{}
	}
	if req.Title == "" {
		req.Title = LookupGate(in.GateID).Name
	}

	key := hrflow.HITLRequestKey(req.RequestID)
	if err := hrflow.SetJSON(ctx, m.store, key, req, timeout+hrflow.HITLRequestGrace); err != nil {
		hrflow.LogPersistenceError(m.logger, key, "create", err)
		return nil, fmt.Errorf("failed to save hitl request: %w", err)
	}
	if err := m.store.AddMember(ctx, hrflow.HITLPendingKey(req.CompanyID), req.RequestID); err != nil {
		return nil, fmt.Errorf("failed to index hitl request: %w", err)
	}
	if err := m.store.AddMember(ctx, hrflow.HITLCompaniesKey, req.CompanyID); err != nil {
		return nil, fmt.Errorf("failed to index company: %w", err)
	}

	m.publish(ctx, hrflow.DestinationHITLRequests, req)

	telemetry.Inc(ctx, m.metrics.HITLRequests, "gate_id", req.GateID.String())
	hrflow.LogHITLRequested(m.logger, req.RequestID, req.GateID, req.CompanyID)
	return req, nil
}

// GetRequest loads a request. A pending request past its expiry is
// transitioned to expired before it is returned.
func (m *Manager) GetRequest(ctx context.Context, requestID string) (*hrflow.HITLRequest, error) {
	req, err := m.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.IsExpired(m.now()) {
		if err := m.expire(ctx, req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// GetPendingRequests returns the company's pending requests, newest first.
// Expired requests found along the way are transitioned and left out.
func (m *Manager) GetPendingRequests(ctx context.Context, companyID string) ([]*hrflow.HITLRequest, error) {
	pending, _, err := m.collectPending(ctx, companyID)
	return pending, err
}

func (m *Manager) collectPending(ctx context.Context, companyID string) ([]*hrflow.HITLRequest, int, error) {
	indexKey := hrflow.HITLPendingKey(companyID)
	ids, err := m.store.Members(ctx, indexKey)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read pending index: %w", err)
	}

	now := m.now()
	pending := make([]*hrflow.HITLRequest, 0, len(ids))
	expired := 0
	for _, id := range ids {
		req, err := m.load(ctx, id)
		if errors.Is(err, hrflow.ErrRequestNotFound) {
			// Record evicted by TTL
			m.unindex(ctx, companyID, id)
			continue
		}
		if err != nil {
			return nil, expired, err
		}

		switch {
		case req.IsExpired(now):
			if err := m.expire(ctx, req); err != nil {
				return nil, expired, err
			}
			expired++
		case req.Status != hrflow.RequestPending:
			m.unindex(ctx, companyID, id)
		default:
			pending = append(pending, req)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].RequestedAt.After(pending[j].RequestedAt)
	})
	return pending, expired, nil
}

// SubmitDecision records an approval or rejection on a pending request and
// publishes the decision. Requests that are absent or already resolved are
// left untouched.
func (m *Manager) SubmitDecision(ctx context.Context, requestID string, approved bool, feedback, decidedBy string) (_ *hrflow.HITLDecision, err error) {
	ctx, span := telemetry.StartSpan(ctx, "hitl.SubmitDecision", "request_id", requestID)
	defer func() { telemetry.EndSpan(span, err) }()

	req, err := m.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	logger := hrflow.RequestLogger(m.logger, req.RequestID, req.GateID)
	if req.Status != hrflow.RequestPending {
		logger.Warn().
			Str("status", req.Status.String()).
			Msg("Decision ignored, request is not pending")
		return nil, hrflow.ErrRequestNotPending
	}

	now := m.now()
	req.Status = hrflow.RequestRejected
	if approved {
		req.Status = hrflow.RequestApproved
	}
	req.DecidedAt = &now
	req.DecidedBy = decidedBy
	req.Feedback = feedback

	if err := m.save(ctx, req); err != nil {
		return nil, err
	}
	m.unindex(ctx, req.CompanyID, req.RequestID)

	decision := &hrflow.HITLDecision{
		RequestID:  req.RequestID,
		GateID:     req.GateID,
		WorkflowID: req.WorkflowID,
		StepID:     req.StepID,
		AgentID:    req.AgentID,
		CompanyID:  req.CompanyID,
		Approved:   approved,
		Feedback:   feedback,
		DecidedBy:  decidedBy,
		DecidedAt:  now,
	}
	m.publish(ctx, hrflow.DestinationHITLResponses, decision)

	telemetry.Inc(ctx, m.metrics.HITLDecisions,
		"gate_id", req.GateID.String(),
		"status", req.Status.String(),
	)
	hrflow.LogHITLDecided(logger, req.RequestID, approved, decidedBy)
	return decision, nil
}

// CancelRequest withdraws a pending request. It reports false with
// ErrRequestNotFound or ErrRequestNotPending when nothing was cancelled.
func (m *Manager) CancelRequest(ctx context.Context, requestID string) (bool, error) {
	req, err := m.GetRequest(ctx, requestID)
	if err != nil {
		return false, err
	}
	if req.Status != hrflow.RequestPending {
		return false, hrflow.ErrRequestNotPending
	}

	now := m.now()
	req.Status = hrflow.RequestCancelled
	req.DecidedAt = &now
	if err := m.save(ctx, req); err != nil {
		return false, err
	}
	m.unindex(ctx, req.CompanyID, req.RequestID)

	hrflow.LogHITLCancelled(m.logger, req.RequestID, req.CompanyID)
	return true, nil
}

// GateInfo returns the metadata of a gate
func (m *Manager) GateInfo(gateID hrflow.GateID) GateInfo {
	return LookupGate(gateID)
}

func (m *Manager) load(ctx context.Context, requestID string) (*hrflow.HITLRequest, error) {
	var req hrflow.HITLRequest
	err := hrflow.GetJSON(ctx, m.store, hrflow.HITLRequestKey(requestID), &req)
	if errors.Is(err, hrflow.ErrKeyNotFound) {
		return nil, hrflow.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load hitl request %s: %w", requestID, err)
	}
	return &req, nil
}

// save overwrites the request, keeping its original eviction time
func (m *Manager) save(ctx context.Context, req *hrflow.HITLRequest) error {
	ttl := time.Duration(req.TimeoutHours)*time.Hour + hrflow.HITLRequestGrace
	if req.ExpiresAt != nil {
		ttl = req.ExpiresAt.Add(hrflow.HITLRequestGrace).Sub(m.now())
		if ttl <= 0 {
			ttl = hrflow.HITLRequestGrace
		}
	}

	key := hrflow.HITLRequestKey(req.RequestID)
	if err := hrflow.SetJSON(ctx, m.store, key, req, ttl); err != nil {
		hrflow.LogPersistenceError(m.logger, key, "update", err)
		return fmt.Errorf("failed to save hitl request: %w", err)
	}
	return nil
}

func (m *Manager) expire(ctx context.Context, req *hrflow.HITLRequest) error {
	now := m.now()
	req.Status = hrflow.RequestExpired
	req.DecidedAt = &now
	if err := m.save(ctx, req); err != nil {
		return err
	}
	m.unindex(ctx, req.CompanyID, req.RequestID)

	telemetry.Inc(ctx, m.metrics.HITLExpired, "gate_id", req.GateID.String())
	hrflow.LogHITLExpired(m.logger, req.RequestID, req.CompanyID)
	return nil
}

// unindex drops a request from the pending index. A failure leaves a stale
// member that the next read removes again.
func (m *Manager) unindex(ctx context.Context, companyID, requestID string) {
	key := hrflow.HITLPendingKey(companyID)
	if err := m.store.RemoveMember(ctx, key, requestID); err != nil {
		hrflow.LogPersistenceError(m.logger, key, "remove_member", err)
	}
}

func (m *Manager) publish(ctx context.Context, destination string, v any) {
	if m.pub == nil {
		return
	}
	if err := hrflow.PublishJSON(ctx, m.pub, destination, v, hrflow.PriorityHITL); err != nil {
		m.logger.Warn().
			Err(err).
			Str("destination", destination).
			Msg("Failed to publish hitl message")
	}
}
