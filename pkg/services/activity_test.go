package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertobarcelos/nexflow/pkg/models"
)

type activityFixture struct {
	*cardFixture
	activities *Activity
	card       *models.Card
}

func newActivityFixture(t *testing.T) *activityFixture {
	t.Helper()

	cards := newCardFixture(t)

	card, err := cards.cards.Create(t.Context(), memberActor(), &models.Card{
		FlowID: cards.flow.ID, StepID: cards.intake.ID, Title: "Deal",
	})
	require.NoError(t, err)

	return &activityFixture{
		cardFixture: cards,
		activities:  NewActivity(cards.persistence, testLogger()),
		card:        card,
	}
}

func TestActivity_CreateRequiresTitleAndDue(t *testing.T) {
	f := newActivityFixture(t)

	_, err := f.activities.Create(t.Context(), memberActor(), &models.Activity{
		CardID: f.card.ID,
		DueAt:  time.Now().Add(time.Hour),
	})
	assert.True(t, IsValidationError(err))

	_, err = f.activities.Create(t.Context(), memberActor(), &models.Activity{
		CardID: f.card.ID,
		Title:  "Call back",
	})
	assert.True(t, IsValidationError(err))

	_, err = f.activities.Create(t.Context(), memberActor(), &models.Activity{
		CardID: "missing",
		Title:  "Call back",
		DueAt:  time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestActivity_CreateRecordsTimelineEvent(t *testing.T) {
	f := newActivityFixture(t)

	activity, err := f.activities.Create(t.Context(), memberActor(), &models.Activity{
		CardID: f.card.ID,
		Title:  "Send proposal",
		DueAt:  time.Now().UTC().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, models.ActivityStatusPending, activity.Status)
	assert.Equal(t, "user-1", activity.CreatedBy)

	events, err := f.persistence.Events().ListByCard(t.Context(), testTenant, f.card.ID)
	require.NoError(t, err)

	last := events[len(events)-1]
	assert.Equal(t, models.EventActivityCreated, last.Kind)
	assert.Equal(t, "Send proposal", last.Payload["title"])
}

func TestActivity_Complete(t *testing.T) {
	f := newActivityFixture(t)

	activity, err := f.activities.Create(t.Context(), memberActor(), &models.Activity{
		CardID: f.card.ID,
		Title:  "Send proposal",
		DueAt:  time.Now().UTC().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	completed, err := f.activities.Complete(t.Context(), memberActor(), activity.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ActivityStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	events, err := f.persistence.Events().ListByCard(t.Context(), testTenant, f.card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventActivityCompleted, events[len(events)-1].Kind)

	_, err = f.activities.Complete(t.Context(), memberActor(), "missing")
	assert.ErrorIs(t, err, ErrActivityNotFound)
}

func TestActivity_SweepOverdue(t *testing.T) {
	f := newActivityFixture(t)

	now := time.Now().UTC()

	overdue, err := f.activities.Create(t.Context(), memberActor(), &models.Activity{
		CardID: f.card.ID,
		Title:  "Missed call",
		DueAt:  now.Add(-time.Hour),
	})
	require.NoError(t, err)

	upcoming, err := f.activities.Create(t.Context(), memberActor(), &models.Activity{
		CardID: f.card.ID,
		Title:  "Future call",
		DueAt:  now.Add(time.Hour),
	})
	require.NoError(t, err)

	done, err := f.activities.Create(t.Context(), memberActor(), &models.Activity{
		CardID: f.card.ID,
		Title:  "Already handled",
		DueAt:  now.Add(-2 * time.Hour),
	})
	require.NoError(t, err)

	_, err = f.activities.Complete(t.Context(), memberActor(), done.ID)
	require.NoError(t, err)

	swept, err := f.activities.SweepOverdue(t.Context(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	refreshed, err := f.persistence.Activities().GetByID(t.Context(), testTenant, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityStatusOverdue, refreshed.Status)

	refreshed, err = f.persistence.Activities().GetByID(t.Context(), testTenant, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityStatusPending, refreshed.Status)

	// Sweeping again finds nothing new.
	swept, err = f.activities.SweepOverdue(t.Context(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}
