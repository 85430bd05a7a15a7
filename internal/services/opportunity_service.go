// internal/services/opportunity_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/authority"
	"github.com/javajoker/crm-governance/internal/decisions"
	"github.com/javajoker/crm-governance/internal/models"
	"github.com/javajoker/crm-governance/internal/utils"
)

const DefaultStage = "Prospecting"

var hundred = decimal.NewFromInt(100)

type OpportunityService struct {
	db        *gorm.DB
	decisions *DecisionService
	audit     *AuditService
}

type CreateOpportunityRequest struct {
	Name            string          `json:"name" validate:"required,max=255"`
	Stage           string          `json:"stage" validate:"max=50"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency" validate:"omitempty,currency_code"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	LeadID          *uuid.UUID      `json:"lead_id"`
}

type UpdateOpportunityRequest struct {
	Name            *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Stage           *string          `json:"stage" validate:"omitempty,min=1,max=50"`
	Amount          *decimal.Decimal `json:"amount"`
	Currency        *string          `json:"currency" validate:"omitempty,currency_code"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
}

func NewOpportunityService(db *gorm.DB, decisionService *DecisionService, audit *AuditService) *OpportunityService {
	return &OpportunityService{db: db, decisions: decisionService, audit: audit}
}

func (s *OpportunityService) Create(ctx context.Context, actor authority.Actor, req CreateOpportunityRequest) (*models.Opportunity, error) {
	if err := utils.ValidateStruct(&req); err != nil {
		return nil, utils.ValidationFailure(err)
	}
	if err := checkMoney(req.Amount, req.DiscountPercent); err != nil {
		return nil, err
	}

	opportunity := &models.Opportunity{
		TenantID:        actor.TenantID,
		OwnerID:         actor.UserID,
		LeadID:          req.LeadID,
		Name:            strings.TrimSpace(req.Name),
		Stage:           strings.TrimSpace(req.Stage),
		Amount:          req.Amount,
		Currency:        strings.ToUpper(strings.TrimSpace(req.Currency)),
		DiscountPercent: req.DiscountPercent,
	}
	if opportunity.Stage == "" {
		opportunity.Stage = DefaultStage
	}
	if opportunity.Currency == "" {
		opportunity.Currency = decisions.DefaultCurrency
	}

	if err := s.db.WithContext(ctx).Create(opportunity).Error; err != nil {
		return nil, apperrors.Internal(err, "failed to create opportunity")
	}

	logrus.WithFields(logrus.Fields{
		"opportunity_id": opportunity.ID,
		"amount":         opportunity.Amount.String(),
	}).Info("Opportunity created")

	s.audit.Record(ctx, AuditEntry{
		TenantID:     actor.TenantID,
		UserID:       actorRef(actor.UserID),
		Action:       "opportunity.create",
		ResourceType: string(models.EntityTypeOpportunity),
		ResourceID:   &opportunity.ID,
		NewValues:    opportunity,
	})

	return opportunity, nil
}

func (s *OpportunityService) Get(ctx context.Context, actor authority.Actor, id uuid.UUID) (*models.Opportunity, error) {
	return loadOpportunity(s.db.WithContext(ctx), actor.TenantID, id)
}

// Update changes stage, amount or discount behind the lock gate.
func (s *OpportunityService) Update(ctx context.Context, actor authority.Actor, id uuid.UUID, req UpdateOpportunityRequest) (*models.Opportunity, error) {
	if err := utils.ValidateStruct(&req); err != nil {
		return nil, utils.ValidationFailure(err)
	}

	var before, opportunity models.Opportunity
	err := s.decisions.Guard(ctx, actor, models.EntityTypeOpportunity, id, func(tx *gorm.DB) error {
		current, err := loadOpportunity(tx, actor.TenantID, id)
		if err != nil {
			return err
		}
		before, opportunity = *current, *current

		if req.Name != nil {
			opportunity.Name = strings.TrimSpace(*req.Name)
		}
		if req.Stage != nil {
			opportunity.Stage = strings.TrimSpace(*req.Stage)
		}
		if req.Amount != nil {
			opportunity.Amount = *req.Amount
		}
		if req.Currency != nil {
			opportunity.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
		}
		if req.DiscountPercent != nil {
			opportunity.DiscountPercent = *req.DiscountPercent
		}
		if err := checkMoney(opportunity.Amount, opportunity.DiscountPercent); err != nil {
			return err
		}

		return tx.Save(&opportunity).Error
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to update opportunity")
	}

	s.audit.Record(ctx, AuditEntry{
		TenantID:     actor.TenantID,
		UserID:       actorRef(actor.UserID),
		Action:       "opportunity.update",
		ResourceType: string(models.EntityTypeOpportunity),
		ResourceID:   &opportunity.ID,
		OldValues:    before,
		NewValues:    opportunity,
	})

	return &opportunity, nil
}

func checkMoney(amount, discount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.Validation(apperrors.CodeValidationFailed, "amount must not be negative").
			WithDetail("field", "amount")
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return apperrors.Validation(apperrors.CodeValidationFailed, "discount percent must be between 0 and 100").
			WithDetail("field", "discount_percent")
	}
	return nil
}

func loadOpportunity(db *gorm.DB, tenantID string, id uuid.UUID) (*models.Opportunity, error) {
	var opportunity models.Opportunity
	err := db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&opportunity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("opportunity")
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load opportunity")
	}
	return &opportunity, nil
}
