package models

// All lists every persisted model, used by sqlite-backed tests and tooling.
func All() []any {
	return []any{
		&User{},
		&Brand{},
		&Flavor{},
		&NicotineLevel{},
		&PuffCount{},
		&Product{},
		&ProductImage{},
		&Cart{},
		&Order{},
		&OrderItem{},
		&Shipment{},
		&Address{},
		&Review{},
		&BlogArticle{},
		&SeoPage{},
		&Faq{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
