// Package catalog implements the Inventory Store: a durable, ordered
// product list with atomic reservation, backed by a single JSON file.
package catalog

import "time"

// Product is identified by a monotonically assigned integer id, never
// reused within a process lifetime (invariant I2).
type Product struct {
	ID          int       `json:"id"`
	Name        string    `json:"nombre"`
	Category    string    `json:"categoria"`
	Price       float64   `json:"precio"`
	Available   bool      `json:"disponible"`
	Stock       int       `json:"stock"`
	Description string    `json:"descripcion"`
	CreatedAt   time.Time `json:"fecha_agregado"`
}

// applyAvailability enforces invariant I1: available = (stock > 0),
// recomputed any time stock changes.
func (p *Product) applyAvailability() {
	p.Available = p.Stock > 0
}
