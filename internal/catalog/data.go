package catalog

var defaultTours = []Tour{
	{
		ID:          1,
		Name:        "Tour Clásico",
		Price:       100,
		Duration:    "Día completo",
		Description: "Visitá 2 bodegas tradicionales con degustación incluida y almuerzo campestre",
		Includes:    []string{"Transporte", "Guía experto", "Degustación", "Almuerzo"},
		Image:       "https://images.unsplash.com/photo-1506377247377-2a5b3b417ebb?w=600&h=400&fit=crop",
	},
	{
		ID:          2,
		Name:        "Tour Premium",
		Price:       250,
		Duration:    "Día completo",
		Description: "Experiencia VIP en bodegas boutique con maridaje gourmet y sommelier privado",
		Includes:    []string{"Transporte privado", "Sommelier", "Maridaje gourmet", "Cena"},
		Image:       "https://images.unsplash.com/photo-1510812431401-41d2bd2722f3?w=600&h=400&fit=crop",
	},
	{
		ID:          3,
		Name:        "Tour Deluxe",
		Price:       500,
		Duration:    "2 días / 1 noche",
		Description: "Experiencia exclusiva con alojamiento en bodega, catas privadas y tour en helicóptero",
		Includes:    []string{"Transporte luxury", "Alojamiento 5★", "Heli-tour", "Chef privado"},
		Image:       "https://images.unsplash.com/photo-1560493676-04071c5f467b?w=600&h=400&fit=crop",
	},
}

// Wine ids start at 101 so they never collide with tour ids.
var defaultWines = []Wine{
	{
		ID:          101,
		Name:        "Malbec Premium",
		Type:        "Tinto",
		Winery:      "Bodega Catena Zapata",
		Region:      "Luján de Cuyo",
		Description: "Gran cuerpo, aromas intensos a frutos rojos maduros y notas especiadas. Ideal para carnes rojas y pastas con salsas robustas.",
		Image:       "img/malbec-premium.png",
	},
	{
		ID:          102,
		Name:        "Blend Reserva",
		Type:        "Tinto",
		Winery:      "Bodega Trapiche",
		Region:      "Maipú",
		Description: "Mezcla equilibrada de uvas seleccionadas con crianza en barrica de roble. Perfecto para ocasiones especiales y maridajes gourmet.",
		Image:       "img/reserva.png",
	},
	{
		ID:          103,
		Name:        "Chardonnay",
		Type:        "Blanco",
		Winery:      "Bodega Luigi Bosca",
		Region:      "Valle de Uco",
		Description: "Fresco y frutal, con notas cítricas y florales. Excelente para pescados, mariscos y quesos suaves. Un clásico mendocino.",
		Image:       "img/chardonnay.png",
	},
}

// Default returns the catalog shipped with the site.
func Default() *Catalog {
	c, err := New(defaultTours, defaultWines)
	if err != nil {
		panic(err)
	}
	return c
}
