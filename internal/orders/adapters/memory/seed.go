package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
)

// LoadProducts reads a JSON array of products from path and adds each one to
// the store. It returns the number of products loaded.
func (s *Store) LoadProducts(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return 0, fmt.Errorf("decode seed file %s: %w", path, err)
	}

	for i, p := range products {
		if p.ID == "" {
			return 0, fmt.Errorf("seed product at index %d has no id", i)
		}
		if p.Quantity < 0 || p.MinOrder < 0 {
			return 0, fmt.Errorf("seed product %s has negative quantity or minimum order", p.ID)
		}
	}
	for _, p := range products {
		s.AddProduct(p)
	}
	return len(products), nil
}
