package persistence

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pricelens/backend/internal/domain"
)

func toDomainProduct(m ProductModel) domain.Product {
	return domain.Product{
		ID:               m.ID.String(),
		RawName:          m.RawName,
		Name:             m.Name,
		StandardizedName: m.StandardizedName,
		Category:         m.Category,
		Unit:             m.Unit,
		StandardizedUnit: m.StandardizedUnit,
	}
}

func toDomainPrice(m PriceModel) domain.Price {
	p := domain.Price{
		ID:         m.ID.String(),
		ProductID:  m.ProductID.String(),
		SupplierID: m.SupplierID.String(),
		Amount:     m.Amount.InexactFloat64(),
		Quantity:   m.Quantity.InexactFloat64(),
		Unit:       m.Unit,
		ValidFrom:  m.ValidFrom,
		ValidTo:    m.ValidTo,
		CreatedAt:  m.CreatedAt,
	}
	if m.UploadID != nil {
		p.UploadID = m.UploadID.String()
	}
	if m.UnitPrice != nil {
		v := m.UnitPrice.InexactFloat64()
		p.UnitPrice = &v
	}
	return p
}

func toActivePrice(m PriceModel) domain.ActivePrice {
	return domain.ActivePrice{
		SupplierID:   m.SupplierID.String(),
		SupplierName: m.Supplier.Name,
		Amount:       m.Amount.InexactFloat64(),
		Quantity:     m.Quantity.InexactFloat64(),
		Unit:         m.Unit,
		ValidFrom:    m.ValidFrom,
		CreatedAt:    m.CreatedAt,
	}
}

// parseID converts a domain id to a uuid, rejecting malformed input
func parseID(field, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q is not a valid id", domain.ErrInvalidInput, field, id)
	}
	return parsed, nil
}

// likePatterns builds one ILIKE pattern per distinct token, escaping wildcards
func likePatterns(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(t)
		out = append(out, "%"+escaped+"%")
	}
	return out
}

func decimalPtr(v float64, ok bool) *decimal.Decimal {
	if !ok {
		return nil
	}
	d := decimal.NewFromFloat(v).Round(4)
	return &d
}
