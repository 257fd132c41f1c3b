package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const (
	selectCardsSQL = `SELECT id, name, description, cost, strength, health,
		creature_types, charge, taunt, targets
		FROM dragon_cards ORDER BY position`
	selectDeckSQL = `SELECT card_id, amount FROM dragon_starting_deck ORDER BY position`
)

// Querier is the subset of pgxpool.Pool used by LoadPostgres.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadPostgres reads the catalog tables written by scripts/import_cards.go.
func LoadPostgres(ctx context.Context, db Querier) (*Catalog, error) {
	rows, err := db.Query(ctx, selectCardsSQL)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	cards, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Card, error) {
		var (
			card    Card
			targets []string
		)
		if err := row.Scan(
			&card.ID,
			&card.Name,
			&card.Description,
			&card.Cost,
			&card.Strength,
			&card.Health,
			&card.CreatureTypes,
			&card.Charge,
			&card.Taunt,
			&targets,
		); err != nil {
			return Card{}, err
		}
		for _, t := range targets {
			card.AcceptableTargets = append(card.AcceptableTargets, Target(t))
		}
		return card, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan cards: %w", err)
	}

	rows, err = db.Query(ctx, selectDeckSQL)
	if err != nil {
		return nil, fmt.Errorf("query starting deck: %w", err)
	}
	deck, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DeckEntry, error) {
		var entry DeckEntry
		err := row.Scan(&entry.CardID, &entry.Amount)
		return entry, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan starting deck: %w", err)
	}

	return New(cards, deck)
}
