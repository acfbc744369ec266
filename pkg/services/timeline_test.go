package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertobarcelos/nexflow/pkg/models"
)

func TestTimeline_CardTimeline(t *testing.T) {
	f := newCardFixture(t)
	timeline := NewTimeline(f.persistence)

	_, err := f.schema.CreateField(t.Context(), testTenant, &models.StepField{
		StepID: f.intake.ID,
		Label:  "Estimated Value",
		Type:   models.FieldTypeNumber,
	})
	require.NoError(t, err)

	card, err := f.cards.Create(t.Context(), memberActor(), &models.Card{
		FlowID: f.flow.ID, StepID: f.intake.ID, Title: "Deal",
	})
	require.NoError(t, err)

	_, err = f.cards.UpdateFieldValues(t.Context(), memberActor(), card.ID, map[string]any{
		"estimated_value": 3200,
	})
	require.NoError(t, err)

	_, err = f.cards.Move(t.Context(), memberActor(), card.ID, f.closing.ID, MoveOptions{})
	require.NoError(t, err)

	_, err = f.cards.Complete(t.Context(), memberActor(), card.ID)
	require.NoError(t, err)

	result, err := timeline.CardTimeline(t.Context(), testTenant, card.ID)
	require.NoError(t, err)

	require.Len(t, result.Entries, 4)
	assert.Equal(t, models.EventCardCreated, result.Entries[0].Kind)
	assert.Equal(t, models.EventFieldUpdate, result.Entries[1].Kind)
	assert.Equal(t, models.EventStageChange, result.Entries[2].Kind)
	assert.Equal(t, models.EventStatusChange, result.Entries[3].Kind)

	assert.Equal(t, "Card created", result.Entries[0].Label)
	assert.Equal(t, "Updated Estimated Value", result.Entries[1].Label)
	assert.Equal(t, "Moved from Intake to Closing", result.Entries[2].Label)
	assert.Equal(t, "Status changed to completed", result.Entries[3].Label)

	assert.Greater(t, result.TimeInCurrentStage, time.Duration(0))
	assert.False(t, result.CurrentStageEntered.IsZero())
}

func TestTimeline_DeletedFieldFallsBackToRawKey(t *testing.T) {
	f := newCardFixture(t)
	timeline := NewTimeline(f.persistence)

	card, err := f.cards.Create(t.Context(), memberActor(), &models.Card{
		FlowID: f.flow.ID, StepID: f.intake.ID, Title: "Deal",
	})
	require.NoError(t, err)

	_, err = f.cards.UpdateFieldValues(t.Context(), memberActor(), card.ID, map[string]any{
		"legacy_field": "x",
	})
	require.NoError(t, err)

	result, err := timeline.CardTimeline(t.Context(), testTenant, card.ID)
	require.NoError(t, err)

	require.Len(t, result.Entries, 2)
	assert.Equal(t, "Updated legacy_field", result.Entries[1].Label)
}

func TestTimeline_StageChangeDurations(t *testing.T) {
	f := newCardFixture(t)
	timeline := NewTimeline(f.persistence)

	third := createTestStep(t, f.schema, f.flow.ID, "Negotiation")

	card, err := f.cards.Create(t.Context(), memberActor(), &models.Card{
		FlowID: f.flow.ID, StepID: f.intake.ID, Title: "Deal",
	})
	require.NoError(t, err)

	_, err = f.cards.Move(t.Context(), memberActor(), card.ID, f.closing.ID, MoveOptions{})
	require.NoError(t, err)

	_, err = f.cards.Move(t.Context(), memberActor(), card.ID, third.ID, MoveOptions{})
	require.NoError(t, err)

	result, err := timeline.CardTimeline(t.Context(), testTenant, card.ID)
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)

	// Creation seeds the baseline, so the first move already measures the
	// time spent in the initial stage.
	first := result.Entries[1]
	require.Equal(t, models.EventStageChange, first.Kind)
	assert.Contains(t, first.Payload, "duration_seconds")

	second := result.Entries[2]
	require.Equal(t, models.EventStageChange, second.Kind)
	assert.Contains(t, second.Payload, "duration_seconds")
}

func TestTimeline_ContactHistorySpansCards(t *testing.T) {
	f := newCardFixture(t)
	timeline := NewTimeline(f.persistence)

	contact := "contact-1"

	first, err := f.cards.Create(t.Context(), memberActor(), &models.Card{
		FlowID: f.flow.ID, StepID: f.intake.ID, Title: "First deal", ContactID: &contact,
	})
	require.NoError(t, err)

	second, err := f.cards.Create(t.Context(), memberActor(), &models.Card{
		FlowID: f.flow.ID, StepID: f.intake.ID, Title: "Second deal", ContactID: &contact,
	})
	require.NoError(t, err)

	_, err = f.cards.Move(t.Context(), memberActor(), first.ID, f.closing.ID, MoveOptions{})
	require.NoError(t, err)

	history, err := timeline.ContactHistory(t.Context(), testTenant, contact)
	require.NoError(t, err)
	require.Len(t, history, 3)

	cardIDs := map[string]bool{}
	for _, record := range history {
		cardIDs[record.CardID] = true
	}

	assert.True(t, cardIDs[first.ID])
	assert.True(t, cardIDs[second.ID])
}
