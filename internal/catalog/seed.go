package catalog

// seedCatalog reproduces the original demonstration catalog exactly:
// five products, one of them already out of stock, used the first time
// a process starts with no inventory file on disk.
func seedCatalog() []Product {
	return []Product{
		{
			Name:        "Manzana Orgánica",
			Category:    "Frutas",
			Price:       2.5,
			Stock:       150,
			Description: "Manzanas orgánicas frescas y crujientes",
		},
		{
			Name:        "Tomate Cherry",
			Category:    "Verduras",
			Price:       3.0,
			Stock:       200,
			Description: "Tomates cherry dulces y jugosos",
		},
		{
			Name:        "Lechuga Hidropónica",
			Category:    "Verduras",
			Price:       1.8,
			Stock:       0,
			Description: "Lechuga fresca cultivada hidropónicamente",
		},
		{
			Name:        "Zanahoria Orgánica",
			Category:    "Verduras",
			Price:       2.2,
			Stock:       300,
			Description: "Zanahorias orgánicas ricas en vitaminas",
		},
		{
			Name:        "Palta Hass",
			Category:    "Frutas",
			Price:       4.5,
			Stock:       80,
			Description: "Paltas Hass cremosas y nutritivas",
		},
	}
}
