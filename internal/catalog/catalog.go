package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Target is a class of entity a creature may attack.
type Target string

const (
	TargetFriendlies Target = "FRIENDLIES"
	TargetEnemies    Target = "ENEMIES"
	TargetOpponent   Target = "OPPONENT"
)

// Card is the immutable catalog definition of a creature card. Field instances
// copy Health and Strength; nothing outside this package mutates a Card.
type Card struct {
	ID                string   `yaml:"id" json:"id"`
	Name              string   `yaml:"name" json:"name"`
	Description       string   `yaml:"description" json:"description"`
	Cost              int      `yaml:"cost" json:"cost"`
	Strength          int      `yaml:"strength" json:"strength"`
	Health            int      `yaml:"health" json:"health"`
	CreatureTypes     []string `yaml:"creature_types" json:"creature_types,omitempty"`
	Charge            bool     `yaml:"charge" json:"charge"`
	Taunt             bool     `yaml:"taunt" json:"taunt"`
	AcceptableTargets []Target `yaml:"targets" json:"targets"`
}

// CanTarget reports whether the card lists t among its acceptable targets.
func (c *Card) CanTarget(t Target) bool {
	for _, target := range c.AcceptableTargets {
		if target == t {
			return true
		}
	}
	return false
}

// DeckEntry is one line of the starting deck list.
type DeckEntry struct {
	CardID string `yaml:"card"`
	Amount int    `yaml:"amount"`
}

type document struct {
	Cards        []Card      `yaml:"cards"`
	StartingDeck []DeckEntry `yaml:"starting_deck"`
}

// Catalog is the read-only card database plus the starting deck list.
type Catalog struct {
	cards        map[string]*Card
	order        []string
	startingDeck []DeckEntry
}

// New builds a catalog from card definitions and a deck list.
func New(cards []Card, deck []DeckEntry) (*Catalog, error) {
	c := &Catalog{
		cards:        make(map[string]*Card, len(cards)),
		order:        make([]string, 0, len(cards)),
		startingDeck: make([]DeckEntry, 0, len(deck)),
	}

	for i := range cards {
		card := cards[i]
		card.ID = strings.TrimSpace(card.ID)
		if card.ID == "" {
			return nil, fmt.Errorf("card %d: id is required", i)
		}
		if _, exists := c.cards[card.ID]; exists {
			return nil, fmt.Errorf("card %s: duplicate id", card.ID)
		}
		if card.Health <= 0 {
			return nil, fmt.Errorf("card %s: health must be positive", card.ID)
		}
		if card.Strength < 0 || card.Cost < 0 {
			return nil, fmt.Errorf("card %s: strength and cost must not be negative", card.ID)
		}
		for _, t := range card.AcceptableTargets {
			switch t {
			case TargetFriendlies, TargetEnemies, TargetOpponent:
			default:
				return nil, fmt.Errorf("card %s: unknown target %q", card.ID, t)
			}
		}
		c.cards[card.ID] = &card
		c.order = append(c.order, card.ID)
	}

	for _, entry := range deck {
		if _, ok := c.cards[entry.CardID]; !ok {
			return nil, fmt.Errorf("starting deck references unknown card %q", entry.CardID)
		}
		if entry.Amount <= 0 {
			return nil, fmt.Errorf("starting deck entry %s: amount must be positive", entry.CardID)
		}
		c.startingDeck = append(c.startingDeck, entry)
	}

	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Cards, doc.StartingDeck)
}

// LoadFile reads and parses a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Get returns the card with the given id.
func (c *Catalog) Get(id string) (*Card, bool) {
	card, ok := c.cards[id]
	return card, ok
}

// Cards returns every card in definition order.
func (c *Catalog) Cards() []*Card {
	out := make([]*Card, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.cards[id])
	}
	return out
}

// Len returns the number of distinct cards.
func (c *Catalog) Len() int {
	return len(c.order)
}

// DeckList returns the starting deck entries.
func (c *Catalog) DeckList() []DeckEntry {
	return append([]DeckEntry(nil), c.startingDeck...)
}

// StartingDeck expands the deck list into one card reference per copy, in
// list order. Callers shuffle.
func (c *Catalog) StartingDeck() []*Card {
	total := 0
	for _, entry := range c.startingDeck {
		total += entry.Amount
	}
	out := make([]*Card, 0, total)
	for _, entry := range c.startingDeck {
		card := c.cards[entry.CardID]
		for i := 0; i < entry.Amount; i++ {
			out = append(out, card)
		}
	}
	return out
}
