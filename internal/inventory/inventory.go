// Package inventory tracks stock levels and answers availability checks for
// the quoting and purchase paths.
package inventory

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/roastline/market-cli/internal/catalog"
	"github.com/roastline/market-cli/internal/model"
)

// Checker is the narrow interface the quote and purchase paths consume.
type Checker interface {
	// Check reports whether quantity is available and the current stock level.
	Check(ingredientID string, quantity float64) (available bool, stock float64, err error)
	// Reserve consumes quantity from stock, re-validating availability under
	// the ingredient's lock. It fails rather than oversells.
	Reserve(ingredientID string, quantity float64) error
	// Release returns previously reserved quantity to stock.
	Release(ingredientID string, quantity float64)
}

// Memory is an in-memory stock ledger seeded from the catalog, with one lock
// per ingredient so unrelated reservations never contend.
type Memory struct {
	mu     sync.Mutex
	levels map[string]*level
}

type level struct {
	mu    sync.Mutex
	stock float64
}

// NewMemory seeds stock levels from the catalog.
func NewMemory(c *catalog.Catalog) *Memory {
	levels := make(map[string]*level, len(c.Ingredients))
	for id, ing := range c.Ingredients {
		levels[id] = &level{stock: ing.Stock}
	}
	return &Memory{levels: levels}
}

func (m *Memory) forIngredient(id string) (*level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.levels[id]
	if !ok {
		return nil, eris.Wrapf(model.ErrIngredientNotFound, "inventory: %s", id)
	}
	return l, nil
}

func (m *Memory) Check(ingredientID string, quantity float64) (bool, float64, error) {
	l, err := m.forIngredient(ingredientID)
	if err != nil {
		return false, 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock >= quantity, l.stock, nil
}

func (m *Memory) Reserve(ingredientID string, quantity float64) error {
	l, err := m.forIngredient(ingredientID)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stock < quantity {
		return eris.Wrapf(model.ErrInsufficientStock, "inventory: %s has %.2f, want %.2f", ingredientID, l.stock, quantity)
	}
	l.stock -= quantity
	return nil
}

func (m *Memory) Release(ingredientID string, quantity float64) {
	l, err := m.forIngredient(ingredientID)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock += quantity
}
