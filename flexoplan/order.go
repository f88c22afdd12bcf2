package flexoplan

import (
	"encoding/json"
)

// EnrichedOrder wraps an Order with its JSON-bearing fields parsed once.
// Fitness evaluation inspects the color and material sets many times per
// generation; parsing at construction removes that constant factor from
// the hot loop. Malformed payloads parse as empty, never as errors.
type EnrichedOrder struct {
	Original *Order

	Colors    map[string]struct{}
	Materials map[string]struct{}
	// CustomerID is opaque; it is only ever compared for equality.
	// nil means the order carries no customer reference.
	CustomerID any
}

// Enrich parses the order's color set, material set and customer id.
func Enrich(o *Order) *EnrichedOrder {
	e := &EnrichedOrder{
		Original:  o,
		Colors:    parseTokenSet(o.Colors),
		Materials: parseTokenSet(o.Materials),
	}

	if o.CustomerData != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(o.CustomerData), &data); err == nil {
			e.CustomerID = scalarOrNil(data["customer_id"])
		}
	}
	return e
}

// scalarOrNil keeps only values that are safe to compare with ==.
// Decoded JSON arrays and objects are not; a customer id of that shape
// is treated as absent.
func scalarOrNil(v any) any {
	switch v.(type) {
	case string, float64, bool:
		return v
	default:
		return nil
	}
}

// EnrichAll enriches a slice of orders, preserving order.
func EnrichAll(orders []Order) []*EnrichedOrder {
	enriched := make([]*EnrichedOrder, len(orders))
	for i := range orders {
		enriched[i] = Enrich(&orders[i])
	}
	return enriched
}

// ID returns the wrapped order's id.
func (e *EnrichedOrder) ID() int {
	return e.Original.ID
}

// NumColors is the count of distinct color tokens on the order.
func (e *EnrichedOrder) NumColors() int {
	return len(e.Colors)
}

// SameMaterials reports whether two orders run on identical material sets.
func (e *EnrichedOrder) SameMaterials(other *EnrichedOrder) bool {
	if len(e.Materials) != len(other.Materials) {
		return false
	}
	for m := range e.Materials {
		if _, ok := other.Materials[m]; !ok {
			return false
		}
	}
	return true
}

// parseTokenSet decodes a JSON array of tokens into a set. Anything that
// does not decode cleanly, including the literal "null", yields an empty
// set.
func parseTokenSet(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	if raw == "" || raw == "null" {
		return set
	}
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return set
	}
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
