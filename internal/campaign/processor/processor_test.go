package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/store"

	"github.com/google/uuid"
)

type fakeStore struct {
	campaigns  map[uuid.UUID]store.Campaign
	activities []store.Activity
}

func newFakeStore() *fakeStore {
	return &fakeStore{campaigns: make(map[uuid.UUID]store.Campaign)}
}

func (f *fakeStore) GetCampaignByID(ctx context.Context, id uuid.UUID) (store.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return store.Campaign{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status string) (store.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return store.Campaign{}, store.ErrNotFound
	}
	c.Status = status
	f.campaigns[id] = c
	return c, nil
}

func (f *fakeStore) UpdateCampaignDeadline(ctx context.Context, id uuid.UUID, endDate *time.Time) (store.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return store.Campaign{}, store.ErrNotFound
	}
	c.EndDate = endDate
	f.campaigns[id] = c
	return c, nil
}

func (f *fakeStore) ListCampaignsPastDeadline(ctx context.Context, now time.Time, limit int) ([]store.Campaign, error) {
	var due []store.Campaign
	for _, c := range f.campaigns {
		if c.Status == store.CampaignStatusPublished && c.EndDate != nil &&
			!c.EndDate.After(now) && c.EndedAt == nil {
			due = append(due, c)
		}
	}
	return due, nil
}

func (f *fakeStore) MarkCampaignEnded(ctx context.Context, id uuid.UUID) (store.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok || c.EndedAt != nil {
		return store.Campaign{}, store.ErrNotFound
	}
	now := time.Now()
	c.EndedAt = &now
	c.Status = store.CampaignStatusCompleted
	f.campaigns[id] = c
	return c, nil
}

func (f *fakeStore) InsertActivity(ctx context.Context, params store.InsertActivityParams) (store.Activity, error) {
	activity := store.Activity{
		ID:         uuid.New(),
		Type:       params.Type,
		CampaignID: params.CampaignID,
		UserID:     params.UserID,
		Data:       params.Data,
	}
	f.activities = append(f.activities, activity)
	return activity, nil
}

func (f *fakeStore) ListActivitiesByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]store.Activity, error) {
	var out []store.Activity
	for _, a := range f.activities {
		if a.CampaignID != nil && *a.CampaignID == campaignID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) activityTypes() []string {
	types := make([]string, 0, len(f.activities))
	for _, a := range f.activities {
		types = append(types, a.Type)
	}
	return types
}

type fakePublisher struct {
	published []store.Activity
}

func (f *fakePublisher) PublishActivity(ctx context.Context, activity store.Activity) error {
	f.published = append(f.published, activity)
	return nil
}

func newFixture() (*Processor, *fakeStore, *fakePublisher) {
	fs := newFakeStore()
	publisher := &fakePublisher{}
	return New(fs, publisher, observability.NewLogger()), fs, publisher
}

func seedCampaign(fs *fakeStore, status string, endDate *time.Time) store.Campaign {
	c := store.Campaign{
		ID:       uuid.New(),
		Status:   status,
		Currency: "USD",
		EndDate:  endDate,
	}
	fs.campaigns[c.ID] = c
	return c
}

func TestChangeStatusModerationFlow(t *testing.T) {
	p, fs, publisher := newFixture()
	c := seedCampaign(fs, store.CampaignStatusDraft, nil)
	actor := uuid.New()

	steps := []struct {
		target   string
		activity string
	}{
		{store.CampaignStatusPending, store.ActivityCampaignSubmittedForReview},
		{store.CampaignStatusDeclined, store.ActivityCampaignDeclined},
		{store.CampaignStatusPending, store.ActivityCampaignResubmittedForReview},
		{store.CampaignStatusPublished, store.ActivityCampaignApprovedAndPublished},
		{store.CampaignStatusCompleted, store.ActivityCampaignCompleted},
	}

	for _, step := range steps {
		updated, err := p.ChangeStatus(context.Background(), c.ID, step.target, actor)
		if err != nil {
			t.Fatalf("ChangeStatus to %s: %v", step.target, err)
		}
		if updated.Status != step.target {
			t.Errorf("expected status %s, got %s", step.target, updated.Status)
		}
	}

	types := fs.activityTypes()
	for i, step := range steps {
		if types[i] != step.activity {
			t.Errorf("step %d: expected activity %s, got %s", i, step.activity, types[i])
		}
	}
	if len(publisher.published) != len(steps) {
		t.Errorf("expected %d published activities, got %d", len(steps), len(publisher.published))
	}
}

func TestChangeStatusCompletedIsTerminal(t *testing.T) {
	p, fs, _ := newFixture()
	c := seedCampaign(fs, store.CampaignStatusCompleted, nil)

	_, err := p.ChangeStatus(context.Background(), c.ID, store.CampaignStatusPublished, uuid.New())
	if !errors.Is(err, ErrInvalidStatusChange) {
		t.Fatalf("expected ErrInvalidStatusChange, got %v", err)
	}
	if len(fs.activities) != 0 {
		t.Error("invalid moves must not record activities")
	}
}

func TestChangeStatusPublishFromDeclined(t *testing.T) {
	p, fs, _ := newFixture()
	c := seedCampaign(fs, store.CampaignStatusDeclined, nil)

	// a moderator reversing a decline publishes directly; the campaign does
	// not have to walk back through pending
	updated, err := p.ChangeStatus(context.Background(), c.ID, store.CampaignStatusPublished, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != store.CampaignStatusPublished {
		t.Errorf("expected published, got %s", updated.Status)
	}

	types := fs.activityTypes()
	if len(types) != 1 || types[0] != store.ActivityCampaignApprovedAndPublished {
		t.Errorf("expected a single approved-and-published activity, got %v", types)
	}
}

func TestChangeStatusSameStatusIsNoOp(t *testing.T) {
	p, fs, _ := newFixture()
	c := seedCampaign(fs, store.CampaignStatusPublished, nil)

	updated, err := p.ChangeStatus(context.Background(), c.ID, store.CampaignStatusPublished, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != store.CampaignStatusPublished {
		t.Errorf("expected published, got %s", updated.Status)
	}
	if len(fs.activities) != 0 {
		t.Error("a no-op move must not record activities")
	}
}

func TestSetDeadlineDerivesActivities(t *testing.T) {
	p, fs, _ := newFixture()
	c := seedCampaign(fs, store.CampaignStatusPublished, nil)
	actor := uuid.New()

	deadline := time.Now().Add(30 * 24 * time.Hour)
	if _, err := p.SetDeadline(context.Background(), c.ID, &deadline, actor); err != nil {
		t.Fatalf("set deadline: %v", err)
	}

	extended := deadline.Add(7 * 24 * time.Hour)
	if _, err := p.SetDeadline(context.Background(), c.ID, &extended, actor); err != nil {
		t.Fatalf("extend deadline: %v", err)
	}

	// shortening derives no activity
	shortened := deadline.Add(-7 * 24 * time.Hour)
	if _, err := p.SetDeadline(context.Background(), c.ID, &shortened, actor); err != nil {
		t.Fatalf("shorten deadline: %v", err)
	}

	if _, err := p.SetDeadline(context.Background(), c.ID, nil, actor); err != nil {
		t.Fatalf("remove deadline: %v", err)
	}

	want := []string{
		store.ActivityCampaignSetDeadline,
		store.ActivityCampaignExtendedDeadline,
		store.ActivityCampaignRemovedDeadline,
	}
	types := fs.activityTypes()
	if len(types) != len(want) {
		t.Fatalf("expected %d activities, got %d: %v", len(want), len(types), types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("activity %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

func TestDeriveDeadlineActivityExtendedDays(t *testing.T) {
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	extended := base.Add(14 * 24 * time.Hour)

	activityType, data := DeriveDeadlineActivity(&base, &extended)
	if activityType != store.ActivityCampaignExtendedDeadline {
		t.Fatalf("expected extended deadline activity, got %s", activityType)
	}
	if data["extended_days"] != 14 {
		t.Errorf("expected 14 extended days, got %v", data["extended_days"])
	}
}

func TestEndDueCampaignsSweep(t *testing.T) {
	p, fs, _ := newFixture()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	due := seedCampaign(fs, store.CampaignStatusPublished, &past)
	notDue := seedCampaign(fs, store.CampaignStatusPublished, &future)

	ended, err := p.EndDueCampaigns(context.Background(), time.Now(), 100)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if ended != 1 {
		t.Fatalf("expected 1 campaign ended, got %d", ended)
	}
	if fs.campaigns[due.ID].EndedAt == nil {
		t.Error("expected due campaign to be ended")
	}
	if fs.campaigns[notDue.ID].EndedAt != nil {
		t.Error("future campaign must not be ended")
	}

	// a second sweep ends nothing
	ended, err = p.EndDueCampaigns(context.Background(), time.Now(), 100)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if ended != 0 {
		t.Errorf("expected idempotent sweep, got %d", ended)
	}
	if got := len(fs.activities); got != 1 {
		t.Errorf("expected one campaign.ended activity, got %d", got)
	}
}
