// internal/services/decision_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/authority"
	"github.com/javajoker/crm-governance/internal/decisions"
	"github.com/javajoker/crm-governance/internal/events"
	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/observability"
	"github.com/javajoker/crm-governance/internal/policy"
	"github.com/javajoker/crm-governance/internal/utils"
)

type DecisionService struct {
	db       *gorm.DB
	engine   *decisions.Engine
	policies *policy.Store
	audit    *AuditService
	events   events.Publisher
}

type CreateDecisionRequest struct {
	EntityType   string          `json:"entity_type" validate:"required,oneof=lead opportunity"`
	EntityID     uuid.UUID       `json:"entity_id" validate:"required"`
	Purpose      string          `json:"purpose" validate:"max=50"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency" validate:"omitempty,currency_code"`
	DecisionType string          `json:"decision_type" validate:"max=50"`
	WorkflowType string          `json:"workflow_type" validate:"max=50"`
	Notes        string          `json:"notes" validate:"max=2000"`
}

type DecideRequest struct {
	Decision        string `json:"decision" validate:"required,decision_action"`
	Comment         string `json:"comment" validate:"max=2000"`
	ExpectedVersion *int   `json:"expected_version,omitempty"`
}

type DecisionFilter struct {
	utils.PaginationParams
	EntityID *uuid.UUID
	Status   *models.DecisionStatus
	Purpose  string
}

// DecisionView is a request with its derived current step and SLA.
type DecisionView struct {
	*models.DecisionRequest
	CurrentStep *models.StepExecution `json:"current_step,omitempty"`
	SLA         decisions.SLA         `json:"sla"`
}

func NewDecisionService(db *gorm.DB, engine *decisions.Engine, policies *policy.Store, audit *AuditService, publisher events.Publisher) *DecisionService {
	return &DecisionService{
		db:       db,
		engine:   engine,
		policies: policies,
		audit:    audit,
		events:   publisher,
	}
}

// Create builds a request for a gated action. created is false when an open
// request for the same entity and purpose already exists and is returned instead.
func (s *DecisionService) Create(ctx context.Context, actor authority.Actor, req CreateDecisionRequest) (view *DecisionView, created bool, err error) {
	ctx, span := observability.StartSpan(ctx, "decisions.create",
		attribute.String("entity_type", req.EntityType),
		attribute.String("purpose", req.Purpose),
	)
	defer func() { span.End(err) }()

	if err := utils.ValidateStruct(&req); err != nil {
		return nil, false, utils.ValidationFailure(err)
	}

	approval, err := s.policies.ApprovalWorkflowPolicy(ctx, actor.TenantID)
	if err != nil {
		observability.PolicyErrors.WithLabelValues(string(models.PolicyKindApproval)).Inc()
		return nil, false, err
	}

	request, err := s.engine.NewRequest(approval, decisions.RequestInput{
		TenantID:     actor.TenantID,
		EntityType:   models.EntityType(req.EntityType),
		EntityID:     req.EntityID,
		DecisionType: req.DecisionType,
		WorkflowType: req.WorkflowType,
		Purpose:      req.Purpose,
		Amount:       req.Amount,
		Currency:     req.Currency,
		RequestedBy:  actor.UserID,
		Notes:        strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return nil, false, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockEntity(tx, actor.TenantID, request.EntityType, request.EntityID); err != nil {
			return err
		}

		if request.Status == models.DecisionStatusSubmitted {
			live, err := liveRequests(tx, actor.TenantID, request.EntityID)
			if err != nil {
				return err
			}
			for i := range live {
				if policy.SamePurpose(live[i].Purpose, request.Purpose) {
					request = &live[i]
					return nil
				}
			}
		}

		created = true
		return tx.Create(request).Error
	})
	if err != nil {
		return nil, false, wrapInternal(err, "failed to create decision request")
	}

	span.AddAttributes(attribute.String("status", string(request.Status)), attribute.Bool("created", created))

	if created {
		observability.DecisionRequests.WithLabelValues(request.Purpose, string(request.Status)).Inc()
		logrus.WithFields(logrus.Fields{
			"request_id":  request.ID,
			"entity_type": request.EntityType,
			"entity_id":   request.EntityID,
			"purpose":     request.Purpose,
			"status":      request.Status,
			"steps":       len(request.Steps),
		}).Info("Decision request created")

		s.audit.Record(ctx, AuditEntry{
			TenantID:     actor.TenantID,
			UserID:       actorRef(actor.UserID),
			Action:       "decision.create",
			ResourceType: "decision_request",
			ResourceID:   &request.ID,
			NewValues:    request,
		})
		s.publish(events.DecisionRequested, actor, request, map[string]interface{}{
			"status": request.Status,
			"steps":  len(request.Steps),
		})
	}

	return s.view(request, approval), created, nil
}

// Decide applies an approver's decision with a compare-and-set on version.
func (s *DecisionService) Decide(ctx context.Context, actor authority.Actor, id uuid.UUID, req DecideRequest) (view *DecisionView, err error) {
	ctx, span := observability.StartSpan(ctx, "decisions.decide", attribute.String("request_id", id.String()))
	defer func() { span.End(err) }()

	if err := utils.ValidateStruct(&req); err != nil {
		return nil, utils.ValidationFailure(err)
	}
	decision, _ := models.ParseStepDecision(req.Decision)

	request, err := s.load(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}

	if req.ExpectedVersion != nil && *req.ExpectedVersion != request.Version {
		return nil, apperrors.Conflict("decision request has changed since it was read").
			WithDetail("request_id", request.ID.String()).
			WithDetail("current_version", request.Version)
	}

	previous := request.Version
	outcome, err := s.engine.Decide(request, actor, decision, req.Comment)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"request_id": request.ID,
			"user_id":    actor.UserID,
		}).Warn("Decision refused")
		return nil, err
	}

	if err := s.commitDecision(ctx, request, previous); err != nil {
		return nil, err
	}

	observability.DecisionOutcomes.WithLabelValues(string(outcome)).Inc()
	if request.Status.IsTerminal() && request.DecidedAt != nil {
		observability.ObserveDecision(request.Purpose, string(request.Status), request.CreatedAt, *request.DecidedAt)
	}

	s.audit.Record(ctx, AuditEntry{
		TenantID:     actor.TenantID,
		UserID:       actorRef(actor.UserID),
		Action:       "decision." + string(outcome),
		ResourceType: "decision_request",
		ResourceID:   &request.ID,
		NewValues: map[string]interface{}{
			"decision": decision,
			"comment":  req.Comment,
			"status":   request.Status,
			"version":  request.Version,
		},
	})
	s.publish(outcomeEvent(outcome), actor, request, map[string]interface{}{
		"decision": decision,
		"status":   request.Status,
	})

	return s.view(request, s.slaPolicy(ctx, actor.TenantID)), nil
}

// commitDecision writes the decided request only if nobody else has since the
// version was read.
func (s *DecisionService) commitDecision(ctx context.Context, request *models.DecisionRequest, previous int) error {
	now := s.engine.Now()
	result := s.db.WithContext(ctx).Model(&models.DecisionRequest{}).
		Where("id = ? AND version = ?", request.ID, previous).
		Updates(map[string]interface{}{
			"steps":      request.Steps,
			"status":     request.Status,
			"decided_at": request.DecidedAt,
			"version":    previous + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return apperrors.Internal(result.Error, "failed to store decision")
	}
	if result.RowsAffected == 0 {
		logrus.WithField("request_id", request.ID).Warn("Concurrent decision lost the race")
		return apperrors.Conflict("decision request was decided concurrently").
			WithDetail("request_id", request.ID.String())
	}

	request.Version = previous + 1
	request.UpdatedAt = now
	return nil
}

func (s *DecisionService) Get(ctx context.Context, actor authority.Actor, id uuid.UUID) (*DecisionView, error) {
	request, err := s.load(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	return s.view(request, s.slaPolicy(ctx, actor.TenantID)), nil
}

func (s *DecisionService) List(ctx context.Context, actor authority.Actor, filter DecisionFilter) ([]DecisionView, int64, error) {
	filter.PaginationParams = utils.NormalizePagination(filter.PaginationParams)
	query := s.db.WithContext(ctx).Model(&models.DecisionRequest{}).Where("tenant_id = ?", actor.TenantID)

	// Apply filters
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if purpose := strings.TrimSpace(filter.Purpose); purpose != "" {
		query = query.Where("LOWER(purpose) = ?", strings.ToLower(purpose))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal(err, "failed to count decision requests")
	}

	var requests []models.DecisionRequest
	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "updated_at", "amount", "status"})
	if err := utils.ApplyPagination(query, filter.PaginationParams).Find(&requests).Error; err != nil {
		return nil, 0, apperrors.Internal(err, "failed to list decision requests")
	}

	return s.views(requests, s.slaPolicy(ctx, actor.TenantID)), total, nil
}

// ListOverdue returns open requests past their SLA. Being overdue changes nothing.
func (s *DecisionService) ListOverdue(ctx context.Context, actor authority.Actor) ([]DecisionView, error) {
	var open []models.DecisionRequest
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", actor.TenantID, models.DecisionStatusSubmitted).
		Order("created_at ASC").
		Find(&open).Error
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list open decision requests")
	}

	approval := s.slaPolicy(ctx, actor.TenantID)
	var overdue []models.DecisionRequest
	for _, request := range open {
		if s.engine.IsOverdue(&request, approval) {
			overdue = append(overdue, request)
		}
	}
	return s.views(overdue, approval), nil
}

// LockState reports whether actor may currently write the entity.
func (s *DecisionService) LockState(ctx context.Context, actor authority.Actor, entityType models.EntityType, entityID uuid.UUID) (decisions.LockState, error) {
	if !entityType.Valid() {
		return decisions.LockState{}, apperrors.Validation(apperrors.CodeValidationFailed, "unsupported entity type")
	}
	live, err := liveRequests(s.db.WithContext(ctx), actor.TenantID, entityID)
	if err != nil {
		return decisions.LockState{}, err
	}
	return s.engine.LockState(live, entityType, entityID, actor), nil
}

// Guard runs write in one transaction after the lock gate has allowed actor to
// mutate the entity. The entity row stays locked until the write commits.
func (s *DecisionService) Guard(ctx context.Context, actor authority.Actor, entityType models.EntityType, entityID uuid.UUID, write func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockEntity(tx, actor.TenantID, entityType, entityID); err != nil {
			return err
		}
		live, err := liveRequests(tx, actor.TenantID, entityID)
		if err != nil {
			return err
		}
		if err := s.engine.AssertMutationAllowed(live, entityType, entityID, actor); err != nil {
			return err
		}
		return write(tx)
	})

	if appErr, ok := apperrors.As(err); ok && appErr.Kind == apperrors.KindRecordLocked {
		s.recordBlocked(ctx, actor, entityType, entityID, appErr)
	}
	return err
}

func (s *DecisionService) recordBlocked(ctx context.Context, actor authority.Actor, entityType models.EntityType, entityID uuid.UUID, appErr *apperrors.Error) {
	observability.BlockedMutations.WithLabelValues(string(entityType)).Inc()
	logrus.WithFields(logrus.Fields{
		"entity_type": entityType,
		"entity_id":   entityID,
		"request_id":  appErr.Details["request_id"],
		"user_id":     actor.UserID,
	}).Info("Mutation blocked by pending decision")

	s.audit.Record(ctx, AuditEntry{
		TenantID:     actor.TenantID,
		UserID:       actorRef(actor.UserID),
		Action:       "mutation.blocked",
		ResourceType: string(entityType),
		ResourceID:   &entityID,
		NewValues:    appErr.Details,
	})
	events.PublishAsync(s.events, events.Event{
		EventType:  events.MutationBlocked,
		TenantID:   actor.TenantID,
		EntityType: string(entityType),
		EntityID:   entityID,
		ActorID:    actorRef(actor.UserID),
		OccurredAt: time.Now().UTC(),
		Data:       appErr.Details,
	})
}

func (s *DecisionService) load(ctx context.Context, tenantID string, id uuid.UUID) (*models.DecisionRequest, error) {
	var request models.DecisionRequest
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("decision request")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load decision request")
	}
	return &request, nil
}

// slaPolicy is best effort; SLA is advisory so reads never fail on it.
func (s *DecisionService) slaPolicy(ctx context.Context, tenantID string) policy.ApprovalWorkflowPolicy {
	approval, err := s.policies.ApprovalWorkflowPolicy(ctx, tenantID)
	if err != nil {
		logrus.WithError(err).WithField("tenant_id", tenantID).Warn("Approval policy unavailable, using default SLA")
		return policy.ApprovalWorkflowPolicy{}
	}
	return approval
}

func (s *DecisionService) view(request *models.DecisionRequest, approval policy.ApprovalWorkflowPolicy) *DecisionView {
	return &DecisionView{
		DecisionRequest: request,
		CurrentStep:     request.CurrentStep(),
		SLA:             s.engine.SLA(request, approval),
	}
}

func (s *DecisionService) views(requests []models.DecisionRequest, approval policy.ApprovalWorkflowPolicy) []DecisionView {
	out := make([]DecisionView, 0, len(requests))
	for i := range requests {
		out = append(out, *s.view(&requests[i], approval))
	}
	return out
}

func (s *DecisionService) publish(eventType string, actor authority.Actor, request *models.DecisionRequest, data map[string]interface{}) {
	data["request_id"] = request.ID
	data["purpose"] = request.Purpose
	data["amount"] = request.Amount.String()
	data["currency"] = request.Currency
	events.PublishAsync(s.events, events.Event{
		EventType:  eventType,
		TenantID:   actor.TenantID,
		EntityType: string(request.EntityType),
		EntityID:   request.EntityID,
		ActorID:    actorRef(actor.UserID),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
}

func outcomeEvent(outcome decisions.Outcome) string {
	switch outcome {
	case decisions.OutcomeApproved:
		return events.DecisionApproved
	case decisions.OutcomeRejected:
		return events.DecisionRejected
	default:
		return events.DecisionStepApproved
	}
}

func liveRequests(tx *gorm.DB, tenantID string, entityID uuid.UUID) ([]models.DecisionRequest, error) {
	var live []models.DecisionRequest
	err := tx.Where("tenant_id = ? AND entity_id = ? AND status = ?", tenantID, entityID, models.DecisionStatusSubmitted).
		Order("created_at ASC").
		Find(&live).Error
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load pending decisions")
	}
	return live, nil
}

// lockEntity confirms the entity exists for the tenant and row-locks it on
// databases that support it.
func lockEntity(tx *gorm.DB, tenantID string, entityType models.EntityType, entityID uuid.UUID) error {
	var model interface{}
	switch entityType {
	case models.EntityTypeLead:
		model = &models.Lead{}
	case models.EntityTypeOpportunity:
		model = &models.Opportunity{}
	default:
		return apperrors.Validation(apperrors.CodeValidationFailed, "unsupported entity type")
	}

	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND tenant_id = ?", entityID, tenantID).
		Take(model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(string(entityType))
	}
	if err != nil {
		return apperrors.Internal(err, "failed to lock "+string(entityType))
	}
	return nil
}
