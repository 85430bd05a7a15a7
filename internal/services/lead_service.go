// internal/services/lead_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/authority"
	"github.com/javajoker/crm-governance/internal/decisions"
	"github.com/javajoker/crm-governance/internal/events"
	"github.com/javajoker/crm-governance/internal/lifecycle"
	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/observability"
	"github.com/javajoker/crm-governance/internal/policy"
	"github.com/javajoker/crm-governance/internal/scoring"
	"github.com/javajoker/crm-governance/internal/utils"
)

type LeadService struct {
	db        *gorm.DB
	decisions *DecisionService
	policies  *policy.Store
	audit     *AuditService
	events    events.Publisher
}

// LeadRequest carries lead fields for create, update and preview. Nil fields
// are left untouched.
type LeadRequest struct {
	OwnerID     *uuid.UUID `json:"owner_id"`
	FirstName   *string    `json:"first_name" validate:"omitempty,max=100"`
	LastName    *string    `json:"last_name" validate:"omitempty,max=100"`
	Email       *string    `json:"email" validate:"omitempty,email,max=255"`
	Phone       *string    `json:"phone" validate:"omitempty,max=50"`
	CompanyName *string    `json:"company_name" validate:"omitempty,max=255"`
	JobTitle    *string    `json:"job_title" validate:"omitempty,max=150"`
	Source      *string    `json:"source" validate:"omitempty,max=100"`

	BudgetAvailability *string `json:"budget_availability" validate:"omitempty,max=150"`
	ReadinessToSpend   *string `json:"readiness_to_spend" validate:"omitempty,max=150"`
	BuyingTimeline     *string `json:"buying_timeline" validate:"omitempty,max=150"`
	ProblemSeverity    *string `json:"problem_severity" validate:"omitempty,max=150"`
	EconomicBuyer      *string `json:"economic_buyer" validate:"omitempty,max=150"`
	ICPFit             *string `json:"icp_fit" validate:"omitempty,max=150"`

	BudgetEvidence        *string `json:"budget_evidence" validate:"omitempty,max=150"`
	ReadinessEvidence     *string `json:"readiness_evidence" validate:"omitempty,max=150"`
	TimelineEvidence      *string `json:"timeline_evidence" validate:"omitempty,max=150"`
	ProblemEvidence       *string `json:"problem_evidence" validate:"omitempty,max=150"`
	EconomicBuyerEvidence *string `json:"economic_buyer_evidence" validate:"omitempty,max=150"`
	ICPFitEvidence        *string `json:"icp_fit_evidence" validate:"omitempty,max=150"`
}

type ChangeStatusRequest struct {
	Status             string     `json:"status" validate:"required,lead_status"`
	NurtureFollowUpAt  *time.Time `json:"nurture_follow_up_at"`
	DisqualifiedReason string     `json:"disqualified_reason" validate:"max=2000"`
	LossReason         string     `json:"loss_reason" validate:"max=2000"`
	LossCompetitor     string     `json:"loss_competitor" validate:"max=255"`
	OverrideReason     string     `json:"override_reason" validate:"max=2000"`
	Note               string     `json:"note" validate:"max=2000"`
}

type StatusChangeResult struct {
	Lead       *models.Lead        `json:"lead"`
	Changed    bool                `json:"changed"`
	Evaluation *scoring.Evaluation `json:"evaluation,omitempty"`
}

// ActivitySignal reports an activity logged against a lead. Only completed
// activities count as a touch.
type ActivitySignal struct {
	ActivityType string `json:"activity_type" validate:"required,oneof=call email meeting task"`
	Subject      string `json:"subject" validate:"max=255"`
	Completed    bool   `json:"completed"`
}

type ActivityResult struct {
	Lead    *models.Lead `json:"lead"`
	Changed bool         `json:"changed"`
}

type ConvertLeadRequest struct {
	OpportunityName string          `json:"opportunity_name" validate:"required,max=255"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" validate:"omitempty,currency_code"`
}

type ConversionResult struct {
	Lead        *models.Lead        `json:"lead"`
	Opportunity *models.Opportunity `json:"opportunity"`
}

type ScorePreview struct {
	scoring.Result
	Evaluation scoring.Evaluation `json:"evaluation"`
}

func NewLeadService(db *gorm.DB, decisionService *DecisionService, policies *policy.Store, audit *AuditService, publisher events.Publisher) *LeadService {
	return &LeadService{
		db:        db,
		decisions: decisionService,
		policies:  policies,
		audit:     audit,
		events:    publisher,
	}
}

func (s *LeadService) Create(ctx context.Context, actor authority.Actor, req LeadRequest) (*models.Lead, error) {
	if err := utils.ValidateStruct(&req); err != nil {
		return nil, utils.ValidationFailure(err)
	}

	qualification, err := s.qualificationPolicy(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}

	lead := &models.Lead{
		TenantID: actor.TenantID,
		OwnerID:  actor.UserID,
		Status:   models.LeadStatusNew,
	}
	req.apply(lead)

	if err := checkEvidence(lead, qualification); err != nil {
		return nil, err
	}
	if err := rescore(lead, qualification); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(lead).Error; err != nil {
		return nil, apperrors.Internal(err, "failed to create lead")
	}

	logrus.WithFields(logrus.Fields{
		"lead_id":             lead.ID,
		"score":               lead.Score,
		"qualification_score": lead.QualificationScore,
	}).Info("Lead created")

	s.audit.Record(ctx, AuditEntry{
		TenantID:     actor.TenantID,
		UserID:       actorRef(actor.UserID),
		Action:       "lead.create",
		ResourceType: string(models.EntityTypeLead),
		ResourceID:   &lead.ID,
		NewValues:    lead,
	})

	return lead, nil
}

func (s *LeadService) Get(ctx context.Context, actor authority.Actor, id uuid.UUID) (*models.Lead, error) {
	return loadLead(s.db.WithContext(ctx), actor.TenantID, id)
}

// Update edits fields and factor selections behind the lock gate and rescores.
func (s *LeadService) Update(ctx context.Context, actor authority.Actor, id uuid.UUID, req LeadRequest) (*models.Lead, error) {
	if err := utils.ValidateStruct(&req); err != nil {
		return nil, utils.ValidationFailure(err)
	}

	qualification, err := s.qualificationPolicy(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}

	var before, lead models.Lead
	err = s.decisions.Guard(ctx, actor, models.EntityTypeLead, id, func(tx *gorm.DB) error {
		current, err := loadLead(tx, actor.TenantID, id)
		if err != nil {
			return err
		}
		before, lead = *current, *current

		if lifecycle.IsTerminal(current.Status) {
			return apperrors.PolicyViolation(apperrors.CodeLeadClosed,
				fmt.Sprintf("a %s lead can no longer be edited", current.Status)).
				WithDetail("status", string(current.Status))
		}
		if req.OwnerID != nil && *req.OwnerID != current.OwnerID && !s.canReassign(actor, current) {
			return apperrors.Forbidden("only the owner or a higher authority level can reassign a lead").
				WithDetail("owner_id", current.OwnerID.String())
		}

		req.apply(&lead)
		if err := checkEvidence(&lead, qualification); err != nil {
			return err
		}
		if err := rescore(&lead, qualification); err != nil {
			return err
		}
		return tx.Save(&lead).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to update lead")
	}

	s.audit.Record(ctx, AuditEntry{
		TenantID:     actor.TenantID,
		UserID:       actorRef(actor.UserID),
		Action:       "lead.update",
		ResourceType: string(models.EntityTypeLead),
		ResourceID:   &lead.ID,
		OldValues:    before,
		NewValues:    lead,
	})

	return &lead, nil
}

// canReassign allows the owner, or anyone ranked above the lowest role.
func (s *LeadService) canReassign(actor authority.Actor, lead *models.Lead) bool {
	if actor.UserID == lead.OwnerID {
		return true
	}
	return s.decisions.engine.Roles().HighestLevel(actor) > 0
}

// ChangeStatus applies a manual transition. Contacted and Converted are never
// reachable from here.
func (s *LeadService) ChangeStatus(ctx context.Context, actor authority.Actor, id uuid.UUID, req ChangeStatusRequest) (result *StatusChangeResult, err error) {
	ctx, span := observability.StartSpan(ctx, "leads.change_status",
		attribute.String("lead_id", id.String()),
		attribute.String("status", req.Status),
	)
	defer func() { span.End(err) }()

	if err := utils.ValidateStruct(&req); err != nil {
		return nil, utils.ValidationFailure(err)
	}
	to, _ := lifecycle.Normalize(req.Status)
	if err := lifecycle.CheckRequestedTarget(to); err != nil {
		return nil, err
	}

	var qualification policy.QualificationPolicy
	if to == models.LeadStatusQualified {
		if qualification, err = s.qualificationPolicy(ctx, actor.TenantID); err != nil {
			return nil, err
		}
	}

	result = &StatusChangeResult{}
	var from models.LeadStatus
	err = s.decisions.Guard(ctx, actor, models.EntityTypeLead, id, func(tx *gorm.DB) error {
		lead, err := loadLead(tx, actor.TenantID, id)
		if err != nil {
			return err
		}
		result.Lead = lead
		from = lead.Status

		noop, err := lifecycle.CheckManualTransition(from, to, lifecycle.Transition{
			NurtureFollowUpAt:  req.NurtureFollowUpAt,
			DisqualifiedReason: req.DisqualifiedReason,
			LossReason:         req.LossReason,
		})
		if err != nil || noop {
			return err
		}

		if to == models.LeadStatusQualified {
			if err := rescore(lead, qualification); err != nil {
				return err
			}
			evaluation := scoring.EvaluateThreshold(lead.QualificationScore, qualification.Thresholds)
			result.Evaluation = &evaluation
			if evaluation.Blocked {
				if !scoring.OverrideAccepted(qualification.Thresholds, req.OverrideReason) {
					return apperrors.PolicyViolation(apperrors.CodeQualificationBlocked,
						fmt.Sprintf("qualification score %d is below the blocking threshold %d",
							lead.QualificationScore, qualification.Thresholds.BlockBelow)).
						WithDetail("qualification_score", lead.QualificationScore).
						WithDetail("block_below", qualification.Thresholds.BlockBelow).
						WithDetail("allow_overrides", qualification.Thresholds.AllowOverrides)
				}
				lead.QualificationOverrideReason = strings.TrimSpace(req.OverrideReason)
			}
		}

		switch to {
		case models.LeadStatusNurture:
			followUp := req.NurtureFollowUpAt.UTC()
			lead.NurtureFollowUpAt = &followUp
		case models.LeadStatusDisqualified:
			lead.DisqualifiedReason = strings.TrimSpace(req.DisqualifiedReason)
		case models.LeadStatusLost:
			lead.LossReason = strings.TrimSpace(req.LossReason)
			lead.LossCompetitor = strings.TrimSpace(req.LossCompetitor)
		}
		lead.Status = to
		result.Changed = true

		if err := tx.Save(lead).Error; err != nil {
			return err
		}
		return tx.Create(&models.LeadStatusHistory{
			TenantID:   actor.TenantID,
			LeadID:     lead.ID,
			FromStatus: from,
			ToStatus:   to,
			ChangedBy:  actorRef(actor.UserID),
			Note:       strings.TrimSpace(req.Note),
		}).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to change lead status")
	}

	if result.Changed {
		s.statusChanged(ctx, actor, result.Lead, from, "manual")
	}
	return result, nil
}

// RecordActivity marks the first touch and moves New leads to Contacted. It is
// not gated: the transition is asserted by the system, not requested by a user.
func (s *LeadService) RecordActivity(ctx context.Context, actor authority.Actor, id uuid.UUID, signal ActivitySignal) (*ActivityResult, error) {
	if err := utils.ValidateStruct(&signal); err != nil {
		return nil, utils.ValidationFailure(err)
	}

	result := &ActivityResult{}
	var from models.LeadStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockEntity(tx, actor.TenantID, models.EntityTypeLead, id); err != nil {
			return err
		}
		lead, err := loadLead(tx, actor.TenantID, id)
		if err != nil {
			return err
		}
		result.Lead = lead
		from = lead.Status

		if !signal.Completed {
			return nil
		}

		dirty := false
		if lead.FirstTouchedAt == nil {
			now := time.Now().UTC()
			lead.FirstTouchedAt = &now
			dirty = true
		}
		if next, ok := lifecycle.ActivityTransition(lead.Status); ok {
			lead.Status = next
			result.Changed = true
			dirty = true
		}
		if !dirty {
			return nil
		}

		if err := tx.Save(lead).Error; err != nil {
			return err
		}
		if !result.Changed {
			return nil
		}
		return tx.Create(&models.LeadStatusHistory{
			TenantID:       actor.TenantID,
			LeadID:         lead.ID,
			FromStatus:     from,
			ToStatus:       lead.Status,
			ChangedBy:      actorRef(actor.UserID),
			SystemAsserted: true,
			Note:           lifecycle.ContactedNote,
		}).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to record activity")
	}

	if result.Changed {
		s.statusChanged(ctx, actor, result.Lead, from, "activity")
		events.PublishAsync(s.events, events.Event{
			EventType:  events.LeadContacted,
			TenantID:   actor.TenantID,
			EntityType: string(models.EntityTypeLead),
			EntityID:   result.Lead.ID,
			ActorID:    actorRef(actor.UserID),
			OccurredAt: time.Now().UTC(),
			Data: map[string]interface{}{
				"activity_type": signal.ActivityType,
				"subject":       signal.Subject,
			},
		})
	}
	return result, nil
}

// Convert is the only path into Converted.
func (s *LeadService) Convert(ctx context.Context, actor authority.Actor, id uuid.UUID, req ConvertLeadRequest) (*ConversionResult, error) {
	if err := utils.ValidateStruct(&req); err != nil {
		return nil, utils.ValidationFailure(err)
	}
	if req.Amount.IsNegative() {
		return nil, apperrors.Validation(apperrors.CodeValidationFailed, "amount must not be negative")
	}

	result := &ConversionResult{}
	var from models.LeadStatus
	err := s.decisions.Guard(ctx, actor, models.EntityTypeLead, id, func(tx *gorm.DB) error {
		lead, err := loadLead(tx, actor.TenantID, id)
		if err != nil {
			return err
		}
		from = lead.Status
		if err := lifecycle.CheckConversion(from); err != nil {
			return err
		}

		currency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = decisions.DefaultCurrency
		}
		opportunity := &models.Opportunity{
			TenantID: actor.TenantID,
			OwnerID:  lead.OwnerID,
			LeadID:   &lead.ID,
			Name:     strings.TrimSpace(req.OpportunityName),
			Stage:    DefaultStage,
			Amount:   req.Amount,
			Currency: currency,
		}
		if err := tx.Create(opportunity).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		lead.Status = models.LeadStatusConverted
		lead.ConvertedOpportunityID = &opportunity.ID
		lead.ConvertedAt = &now
		if err := tx.Save(lead).Error; err != nil {
			return err
		}

		result.Lead, result.Opportunity = lead, opportunity
		return tx.Create(&models.LeadStatusHistory{
			TenantID:   actor.TenantID,
			LeadID:     lead.ID,
			FromStatus: from,
			ToStatus:   models.LeadStatusConverted,
			ChangedBy:  actorRef(actor.UserID),
			Note:       "Converted to opportunity " + opportunity.Name,
		}).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to convert lead")
	}

	s.audit.Record(ctx, AuditEntry{
		TenantID:     actor.TenantID,
		UserID:       actorRef(actor.UserID),
		Action:       "opportunity.create",
		ResourceType: string(models.EntityTypeOpportunity),
		ResourceID:   &result.Opportunity.ID,
		NewValues:    result.Opportunity,
	})
	s.statusChanged(ctx, actor, result.Lead, from, "conversion")
	return result, nil
}

func (s *LeadService) History(ctx context.Context, actor authority.Actor, id uuid.UUID) ([]models.LeadStatusHistory, error) {
	if _, err := loadLead(s.db.WithContext(ctx), actor.TenantID, id); err != nil {
		return nil, err
	}

	var history []models.LeadStatusHistory
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND lead_id = ?", actor.TenantID, id).
		Order("created_at ASC").
		Find(&history).Error
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load lead history")
	}
	return history, nil
}

// Preview scores an unsaved lead payload under the tenant's policy.
func (s *LeadService) Preview(ctx context.Context, actor authority.Actor, req LeadRequest) (*ScorePreview, error) {
	if err := utils.ValidateStruct(&req); err != nil {
		return nil, utils.ValidationFailure(err)
	}

	qualification, err := s.qualificationPolicy(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}

	var lead models.Lead
	req.apply(&lead)
	if err := checkEvidence(&lead, qualification); err != nil {
		return nil, err
	}

	result, err := scoring.ComputeScores(scoring.InputFromLead(&lead), qualification)
	if err != nil {
		return nil, err
	}
	observability.ScoreComputations.WithLabelValues("preview").Inc()

	return &ScorePreview{
		Result:     result,
		Evaluation: scoring.EvaluateThreshold(result.QualificationScore, qualification.Thresholds),
	}, nil
}

func (s *LeadService) qualificationPolicy(ctx context.Context, tenantID string) (policy.QualificationPolicy, error) {
	qualification, err := s.policies.QualificationPolicy(ctx, tenantID)
	if err != nil {
		observability.PolicyErrors.WithLabelValues(string(models.PolicyKindQualification)).Inc()
		logrus.WithError(err).WithField("tenant_id", tenantID).Error("Qualification policy unusable")
		return policy.QualificationPolicy{}, err
	}
	return qualification, nil
}

func (s *LeadService) statusChanged(ctx context.Context, actor authority.Actor, lead *models.Lead, from models.LeadStatus, source string) {
	observability.LeadTransitions.WithLabelValues(string(from), string(lead.Status), source).Inc()
	logrus.WithFields(logrus.Fields{
		"lead_id": lead.ID,
		"from":    from,
		"to":      lead.Status,
		"source":  source,
	}).Info("Lead status changed")

	s.audit.Record(ctx, AuditEntry{
		TenantID:     actor.TenantID,
		UserID:       actorRef(actor.UserID),
		Action:       "lead.status_change",
		ResourceType: string(models.EntityTypeLead),
		ResourceID:   &lead.ID,
		OldValues:    map[string]interface{}{"status": from},
		NewValues:    map[string]interface{}{"status": lead.Status, "source": source},
	})
	events.PublishAsync(s.events, events.Event{
		EventType:  events.LeadStatusChanged,
		TenantID:   actor.TenantID,
		EntityType: string(models.EntityTypeLead),
		EntityID:   lead.ID,
		ActorID:    actorRef(actor.UserID),
		OccurredAt: time.Now().UTC(),
		Data: map[string]interface{}{
			"from":   from,
			"to":     lead.Status,
			"source": source,
		},
	})
}

func (r LeadRequest) apply(lead *models.Lead) {
	if r.OwnerID != nil {
		lead.OwnerID = *r.OwnerID
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&lead.FirstName, r.FirstName)
	set(&lead.LastName, r.LastName)
	set(&lead.Email, r.Email)
	set(&lead.Phone, r.Phone)
	set(&lead.CompanyName, r.CompanyName)
	set(&lead.JobTitle, r.JobTitle)
	set(&lead.Source, r.Source)

	set(&lead.BudgetAvailability, r.BudgetAvailability)
	set(&lead.ReadinessToSpend, r.ReadinessToSpend)
	set(&lead.BuyingTimeline, r.BuyingTimeline)
	set(&lead.ProblemSeverity, r.ProblemSeverity)
	set(&lead.EconomicBuyer, r.EconomicBuyer)
	set(&lead.ICPFit, r.ICPFit)

	set(&lead.BudgetEvidence, r.BudgetEvidence)
	set(&lead.ReadinessEvidence, r.ReadinessEvidence)
	set(&lead.TimelineEvidence, r.TimelineEvidence)
	set(&lead.ProblemEvidence, r.ProblemEvidence)
	set(&lead.EconomicBuyerEvidence, r.EconomicBuyerEvidence)
	set(&lead.ICPFitEvidence, r.ICPFitEvidence)
}

// checkEvidence accepts empty sources or members of the evidence catalog.
func checkEvidence(lead *models.Lead, p policy.QualificationPolicy) error {
	sources := []struct {
		field, value string
	}{
		{"budget_evidence", lead.BudgetEvidence},
		{"readiness_evidence", lead.ReadinessEvidence},
		{"timeline_evidence", lead.TimelineEvidence},
		{"problem_evidence", lead.ProblemEvidence},
		{"economic_buyer_evidence", lead.EconomicBuyerEvidence},
		{"icp_fit_evidence", lead.ICPFitEvidence},
	}
	for _, src := range sources {
		if src.value == "" || p.HasEvidenceSource(src.value) {
			continue
		}
		return apperrors.Validation(apperrors.CodeInvalidEvidenceSource,
			fmt.Sprintf("%q is not a recognised evidence source", src.value)).
			WithDetail("field", src.field)
	}
	return nil
}

func rescore(lead *models.Lead, p policy.QualificationPolicy) error {
	result, err := scoring.ComputeScores(scoring.InputFromLead(lead), p)
	if err != nil {
		observability.ScoreComputations.WithLabelValues("error").Inc()
		return err
	}
	observability.ScoreComputations.WithLabelValues("ok").Inc()
	observability.QualificationScores.Observe(float64(result.QualificationScore))

	lead.Score = result.DataQualityScore
	lead.QualificationScore = result.QualificationScore
	lead.WeakestFactor = string(result.WeakestFactor.Factor)
	return nil
}

func loadLead(db *gorm.DB, tenantID string, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	err := db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("lead")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load lead")
	}
	return &lead, nil
}

// wrapInternal passes domain errors through and wraps anything else.
func wrapInternal(err error, message string) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Internal(err, message)
}
