package decisions

import (
	"github.com/google/uuid"

	"github.com/javajoker/crm-governance/internal/apperrors"
	"github.com/javajoker/crm-governance/internal/authority"
	"github.com/javajoker/crm-governance/internal/models"
)

// LockState is the derived lock view of one entity for one acting user.
type LockState struct {
	EntityType models.EntityType `json:"entity_type"`
	EntityID   uuid.UUID         `json:"entity_id"`
	Allowed    bool              `json:"allowed"`
	Reason     string            `json:"reason,omitempty"`
	RequestID  *uuid.UUID        `json:"request_id,omitempty"`
	Pending    int               `json:"pending_requests"`
}

// Blocking returns the first live request that locks the entity against actor.
// Only the requester is locked, and only while lacking the current step's role.
func (e *Engine) Blocking(requests []models.DecisionRequest, entityID uuid.UUID, actor authority.Actor) *models.DecisionRequest {
	for i := range requests {
		req := &requests[i]
		if req.EntityID != entityID || req.Status != models.DecisionStatusSubmitted {
			continue
		}
		if req.RequestedByUserID != actor.UserID {
			continue
		}
		step := req.CurrentStep()
		if step == nil || e.roles.Satisfies(actor, step.ApproverRole) {
			continue
		}
		return req
	}
	return nil
}

// AssertMutationAllowed returns a RecordLocked error when any live request
// blocks actor from writing the entity.
func (e *Engine) AssertMutationAllowed(requests []models.DecisionRequest, entityType models.EntityType, entityID uuid.UUID, actor authority.Actor) error {
	if req := e.Blocking(requests, entityID, actor); req != nil {
		return apperrors.Locked(string(entityType), entityID.String(), req.ID.String())
	}
	return nil
}

func (e *Engine) LockState(requests []models.DecisionRequest, entityType models.EntityType, entityID uuid.UUID, actor authority.Actor) LockState {
	state := LockState{EntityType: entityType, EntityID: entityID, Allowed: true}
	for _, req := range requests {
		if req.EntityID == entityID && req.Status == models.DecisionStatusSubmitted {
			state.Pending++
		}
	}
	if req := e.Blocking(requests, entityID, actor); req != nil {
		id := req.ID
		state.Allowed = false
		state.Reason = apperrors.LockedMessage
		state.RequestID = &id
	}
	return state
}
