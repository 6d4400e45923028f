package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"ktm_scrooper/identity"
	"ktm_scrooper/models"
	"ktm_scrooper/storage"
)

// PlanService owns the fan-out when a captured plan reaches the archive:
// find-or-create by fingerprint, snapshot the capture, and emit timeline
// events for new plans and price changes.
type PlanService struct {
	store *storage.PostgresStore
}

func NewPlanService(store *storage.PostgresStore) *PlanService {
	return &PlanService{store: store}
}

// ProcessResult contains the outcome of processing one captured plan.
type ProcessResult struct {
	PlanID        uuid.UUID
	IsNewPlan     bool
	PriceChanged  bool
	EventsCreated int
}

// ProcessStats aggregates results over a run.
type ProcessStats struct {
	PlansProcessed int `json:"plans_processed"`
	PlansNew       int `json:"plans_new"`
	PriceChanges   int `json:"price_changes"`
	Errors         int `json:"errors"`
}

func (s *ProcessStats) Aggregate(r *ProcessResult) {
	s.PlansProcessed++
	if r.IsNewPlan {
		s.PlansNew++
	}
	if r.PriceChanged {
		s.PriceChanges++
	}
}

func (s *ProcessStats) ToJSON() json.RawMessage {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return data
}

// ProcessPlan archives one captured plan. Idempotent per capture: calling it
// again with the same data only adds another snapshot.
func (s *PlanService) ProcessPlan(ctx context.Context, raw *models.RawPlan, runID *int64) (*ProcessResult, error) {
	result := &ProcessResult{}
	now := time.Now()

	fingerprint := identity.Fingerprint(raw)

	existing, err := s.store.GetPlanByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	var price *int
	if raw.Price > 0 {
		p := raw.Price
		price = &p
	}

	title := raw.ModalTitle
	if title == "" {
		title = raw.ListTitle
	}

	details := mustMarshal(map[string]json.RawMessage{
		"sections": orNull(raw.SectionsJSON),
		"dl":       orNull(raw.DLJSON),
		"tables":   orNull(raw.TablesJSON),
		"links":    orNull(raw.LinksJSON),
		"bullets":  orNull(raw.BulletsJSON),
	})

	plan := &models.DomainPlan{
		Fingerprint: fingerprint,
		Site:        raw.Site,
		TabName:     raw.TabName,
		SubtabName:  raw.SubtabName,
		Network:     identity.Network(raw.SubtabName),
		Title:       title,
		Price:       price,
		PriceText:   raw.PriceText,
		SpeedNotes:  raw.SpeedTopList,
		Details:     details,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if existing == nil {
		plan.ID = uuid.New()
		result.IsNewPlan = true
	} else {
		plan.ID = existing.ID
		plan.CreatedAt = existing.CreatedAt
	}

	if err := s.store.UpsertPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("upsert plan: %w", err)
	}
	result.PlanID = plan.ID

	// price change detection against the previous snapshot
	var prevPrice *int
	if existing != nil {
		if snap, err := s.store.GetLatestSnapshot(ctx, plan.ID); err == nil && snap != nil {
			prevPrice = snap.Price
		}
	}

	snap := &models.DomainPlanSnapshot{
		ID:             uuid.New(),
		PlanID:         plan.ID,
		Source:         raw.Site,
		TabName:        raw.TabName,
		SubtabName:     raw.SubtabName,
		Title:          title,
		Price:          price,
		PriceText:      raw.PriceText,
		SpeedTopList:   raw.SpeedTopList,
		SpeedDataGuide: raw.SpeedDataGuide,
		RawData:        mustMarshalValue(raw),
		ScrapedAt:      raw.ScrapedAt,
		RunID:          runID,
	}
	if err := s.store.CreateSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	if result.IsNewPlan {
		event := &models.PlanEvent{
			PlanID:    plan.ID,
			EventType: models.EventTypePlanListed,
			EventDate: now,
			Price:     price,
			Summary:   fmt.Sprintf("Plan first seen under %s / %s", raw.TabName, raw.SubtabName),
			Source:    raw.Site,
			CreatedAt: now,
		}
		if err := s.store.CreatePlanEvent(ctx, event); err == nil {
			result.EventsCreated++
		}
	} else if price != nil && prevPrice != nil && *price != *prevPrice {
		result.PriceChanged = true
		event := &models.PlanEvent{
			PlanID:        plan.ID,
			EventType:     models.EventTypePriceChange,
			EventDate:     now,
			Price:         price,
			PreviousPrice: prevPrice,
			Summary:       fmt.Sprintf("Price changed from %d to %d", *prevPrice, *price),
			Source:        raw.Site,
			CreatedAt:     now,
		}
		if err := s.store.CreatePlanEvent(ctx, event); err == nil {
			result.EventsCreated++
		}
	}

	return result, nil
}

// RetirePlans deactivates plans not seen in this run and records a removal
// event for each.
func (s *PlanService) RetirePlans(ctx context.Context, site string, seen []uuid.UUID) (int, error) {
	retired, err := s.store.MarkPlansInactive(ctx, site, seen)
	if err != nil {
		return 0, fmt.Errorf("mark inactive: %w", err)
	}

	now := time.Now()
	for _, id := range retired {
		s.store.CreatePlanEvent(ctx, &models.PlanEvent{
			PlanID:    id,
			EventType: models.EventTypePlanRemoved,
			EventDate: now,
			Summary:   "Plan no longer present on the rate list",
			Source:    site,
			CreatedAt: now,
		})
	}
	return len(retired), nil
}

func mustMarshal(v map[string]json.RawMessage) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func mustMarshalValue(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
