// Package plans holds the static plan catalog: price and monthly character
// quota per plan. The catalog is built once at startup and never mutated.
package plans

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"voicehub/internal/domain"
)

// Unlimited is the quota sentinel for plans without a character cap.
const Unlimited int64 = -1

// DefaultMaxRequestChars caps a single synthesis request.
const DefaultMaxRequestChars = 5000

// pricePlaces matches the ledger's amount precision.
const pricePlaces = 2

// Plan is one catalog entry.
type Plan struct {
	ID              domain.PlanID   `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	Quota           int64           `json:"quota"`
	MaxRequestChars int             `json:"max_request_chars"`
}

// IsUnlimited reports whether the plan has no character cap.
func (p Plan) IsUnlimited() bool {
	return p.Quota == Unlimited
}

// Catalog resolves plan identifiers, including legacy aliases.
type Catalog struct {
	currency currency.Unit
	plans    map[domain.PlanID]Plan
	aliases  map[string]domain.PlanID
}

// Default returns the built-in catalog.
func Default(cur string) (*Catalog, error) {
	return New(cur, []Plan{
		{ID: domain.PlanFree, Name: "Free", Price: decimal.Zero, Quota: 5000},
		{ID: domain.PlanStarter, Name: "Starter", Price: decimal.NewFromInt(490), Quota: 50000},
		{ID: domain.PlanProfessional, Name: "Professional", Price: decimal.NewFromInt(1990), Quota: 300000},
		{ID: domain.PlanBusiness, Name: "Business", Price: decimal.NewFromInt(4990), Quota: Unlimited, MaxRequestChars: 8000},
	}, map[string]domain.PlanID{
		"basic":     domain.PlanStarter,
		"pro":       domain.PlanProfessional,
		"unlimited": domain.PlanBusiness,
	})
}

// New validates entries and builds a catalog.
func New(cur string, entries []Plan, aliases map[string]domain.PlanID) (*Catalog, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(cur)))
	if err != nil {
		return nil, fmt.Errorf("plans: currency %q: %w", cur, err)
	}
	c := &Catalog{
		currency: unit,
		plans:    make(map[domain.PlanID]Plan, len(entries)),
		aliases:  make(map[string]domain.PlanID, len(aliases)),
	}
	for _, p := range entries {
		p.ID = domain.PlanID(normalize(string(p.ID)))
		if p.ID == "" {
			return nil, fmt.Errorf("plans: entry without id")
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("plans: duplicate plan %q", p.ID)
		}
		if p.Price.IsNegative() {
			return nil, fmt.Errorf("plans: %s: negative price", p.ID)
		}
		if !p.Price.Equal(p.Price.Truncate(pricePlaces)) {
			return nil, fmt.Errorf("plans: %s: price %s has more than %d decimal places", p.ID, p.Price, pricePlaces)
		}
		if p.Price.GreaterThan(domain.MaxAmount) {
			return nil, fmt.Errorf("plans: %s: price %s exceeds %s", p.ID, p.Price, domain.MaxAmount)
		}
		if p.Quota < 0 && p.Quota != Unlimited {
			return nil, fmt.Errorf("plans: %s: quota must be >= 0 or %d", p.ID, Unlimited)
		}
		if p.MaxRequestChars <= 0 {
			p.MaxRequestChars = DefaultMaxRequestChars
		}
		if p.Name == "" {
			p.Name = string(p.ID)
		}
		c.plans[p.ID] = p
	}
	if _, ok := c.plans[domain.PlanFree]; !ok {
		return nil, fmt.Errorf("plans: catalog must define %q", domain.PlanFree)
	}
	for alias, target := range aliases {
		if _, ok := c.plans[target]; !ok {
			return nil, fmt.Errorf("plans: alias %q points to unknown plan %q", alias, target)
		}
		c.aliases[normalize(alias)] = target
	}
	return c, nil
}

type catalogFile struct {
	Plans   []Plan                   `json:"plans"`
	Aliases map[string]domain.PlanID `json:"aliases"`
}

// FromJSON builds a catalog from a PLAN_CATALOG document:
// {"plans":[{"id":"free","price":"0","quota":5000}],"aliases":{"basic":"starter"}}.
// An empty document yields the default catalog.
func FromJSON(cur, raw string) (*Catalog, error) {
	if strings.TrimSpace(raw) == "" {
		return Default(cur)
	}
	var file catalogFile
	if err := json.Unmarshal([]byte(raw), &file); err != nil {
		return nil, fmt.Errorf("plans: decode catalog: %w", err)
	}
	return New(cur, file.Plans, file.Aliases)
}

// Currency returns the ISO code prices are denominated in.
func (c *Catalog) Currency() string {
	return c.currency.String()
}

// Resolve maps an identifier or alias to its canonical plan ID.
func (c *Catalog) Resolve(id string) (domain.PlanID, error) {
	key := normalize(id)
	if _, ok := c.plans[domain.PlanID(key)]; ok {
		return domain.PlanID(key), nil
	}
	if target, ok := c.aliases[key]; ok {
		return target, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownPlan, id)
}

// Lookup returns the plan for an identifier or alias.
func (c *Catalog) Lookup(id string) (Plan, error) {
	canonical, err := c.Resolve(id)
	if err != nil {
		return Plan{}, err
	}
	return c.plans[canonical], nil
}

// PriceOf returns the plan's price.
func (c *Catalog) PriceOf(id string) (decimal.Decimal, error) {
	p, err := c.Lookup(id)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Price, nil
}

// QuotaOf returns the plan's monthly character quota, or Unlimited.
func (c *Catalog) QuotaOf(id string) (int64, error) {
	p, err := c.Lookup(id)
	if err != nil {
		return 0, err
	}
	return p.Quota, nil
}

// Plans lists every plan ordered by price, then ID.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Price.Cmp(out[j].Price); cmp != 0 {
			return cmp < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// FromMinorUnits converts an amount in the currency's smallest unit, as
// payment providers report it, into a decimal using the ISO 4217 scale.
func FromMinorUnits(amount int64, cur string) (decimal.Decimal, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(cur)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("plans: currency %q: %w", cur, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return decimal.New(amount, -int32(scale)), nil
}
