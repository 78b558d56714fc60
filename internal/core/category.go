package core

import "strings"

// Category pairs a category id with the icon shown next to its records.
type Category struct {
	ID    string `json:"id"`
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

var (
	Food      = Category{ID: "food", Icon: "cart.fill", Label: "Food"}
	Transport = Category{ID: "transport", Icon: "car.fill", Label: "Transport"}
	Ent       = Category{ID: "ent", Icon: "tv.fill", Label: "Entertainment"}
	Health    = Category{ID: "health", Icon: "heart.fill", Label: "Health"}
)

// Categories returns the selectable categories in display order.
func Categories() []Category {
	return []Category{Food, Transport, Ent, Health}
}

// ResolveCategory maps an id to a selectable category. Unknown ids, including
// "other" as returned by receipt analysis, resolve to Food.
func ResolveCategory(id string) Category {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, c := range Categories() {
		if c.ID == id {
			return c
		}
	}
	return Food
}
