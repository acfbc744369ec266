package file

import (
	"context"
	"sort"

	"github.com/albertobarcelos/nexflow/pkg/models"
	"github.com/albertobarcelos/nexflow/pkg/persistence"
)

const kindCard = "cards"

// CardRepository handles card documents.
type CardRepository struct {
	store *store
}

func (r *CardRepository) ListByFlow(_ context.Context, tenantID, flowID string, opts persistence.ListCardsOptions) ([]*models.Card, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(tenantID, kindCard)
	if err != nil {
		return nil, err
	}

	cards := make([]*models.Card, 0)

	for _, id := range ids {
		card := &models.Card{}

		found, err := r.store.read(tenantID, kindCard, id, card)
		if err != nil {
			return nil, err
		}

		if !found || card.FlowID != flowID {
			continue
		}

		if opts.StepID != "" && card.StepID != opts.StepID {
			continue
		}

		if opts.Status != nil && card.Status != *opts.Status {
			continue
		}

		cards = append(cards, card)
	}

	sort.Slice(cards, func(i, j int) bool {
		if cards[i].StepID != cards[j].StepID {
			return cards[i].StepID < cards[j].StepID
		}

		return cards[i].Position < cards[j].Position
	})

	return cards, nil
}

func (r *CardRepository) GetByID(_ context.Context, tenantID, id string) (*models.Card, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	card := &models.Card{}

	found, err := r.store.read(tenantID, kindCard, id, card)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return card, nil
}

func (r *CardRepository) Save(_ context.Context, card *models.Card) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(card.TenantID, kindCard, card.ID, card)
}

func (r *CardRepository) CountByStep(_ context.Context, tenantID, stepID string) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids(tenantID, kindCard)
	if err != nil {
		return 0, err
	}

	var count int64

	for _, id := range ids {
		card := &models.Card{}

		found, err := r.store.read(tenantID, kindCard, id, card)
		if err != nil {
			return 0, err
		}

		if found && card.StepID == stepID {
			count++
		}
	}

	return count, nil
}
