package handlers

import (
	"encoding/json"
	"net/http"
)

type planResponse struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Price           json.Number `json:"price"`
	Quota           int64       `json:"quota"`
	Unlimited       bool        `json:"unlimited"`
	MaxRequestChars int         `json:"max_request_chars"`
}

// ListPlans serves the pricing table.
func (a *App) ListPlans(w http.ResponseWriter, r *http.Request) {
	all := a.Catalog.Plans()
	items := make([]planResponse, 0, len(all))
	for _, p := range all {
		items = append(items, planResponse{
			ID:              string(p.ID),
			Name:            p.Name,
			Price:           money(p.Price),
			Quota:           p.Quota,
			Unlimited:       p.IsUnlimited(),
			MaxRequestChars: p.MaxRequestChars,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"currency": a.Catalog.Currency(),
		"plans":    items,
	})
}
