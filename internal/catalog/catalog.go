package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound    = errors.New("catalog item not found")
	ErrDuplicateID = errors.New("duplicate catalog id")
)

type Kind string

const (
	KindTour Kind = "tour"
	KindWine Kind = "wine"
)

type Tour struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Price       int      `json:"price"`
	Duration    string   `json:"duration"`
	Description string   `json:"description"`
	Includes    []string `json:"includes"`
	Image       string   `json:"image"`
}

// FormattedPrice renders the price in US dollars, e.g. "USD $100".
func (t Tour) FormattedPrice() string {
	return fmt.Sprintf("USD $%d", t.Price)
}

func (t Tour) Details() string {
	return fmt.Sprintf("%s - %s - %s", t.Name, t.Duration, t.FormattedPrice())
}

func (t Tour) clone() Tour {
	t.Includes = append([]string(nil), t.Includes...)
	return t
}

type Wine struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Winery      string `json:"winery"`
	Region      string `json:"region"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

func (w Wine) Summary() string {
	return fmt.Sprintf("%s (%s) - %s, %s", w.Name, w.Type, w.Winery, w.Region)
}

// Item is the kind-agnostic view used for favorites.
type Item struct {
	ID   int64  `json:"id"`
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

type Stats struct {
	TotalTours   int      `json:"totalTours"`
	TotalWines   int      `json:"totalWines"`
	MinTourPrice int      `json:"minTourPrice"`
	MaxTourPrice int      `json:"maxTourPrice"`
	Wineries     []string `json:"wineries"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	tours []Tour
	wines []Wine
	items map[int64]Item
}

// New builds a catalog and rejects ids shared between any two entries,
// tours and wines included.
func New(tours []Tour, wines []Wine) (*Catalog, error) {
	c := &Catalog{items: make(map[int64]Item, len(tours)+len(wines))}

	for _, t := range tours {
		if err := c.index(Item{ID: t.ID, Kind: KindTour, Name: t.Name}); err != nil {
			return nil, err
		}
		c.tours = append(c.tours, t.clone())
	}
	for _, w := range wines {
		if err := c.index(Item{ID: w.ID, Kind: KindWine, Name: w.Name}); err != nil {
			return nil, err
		}
		c.wines = append(c.wines, w)
	}
	return c, nil
}

func (c *Catalog) index(item Item) error {
	if _, exists := c.items[item.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, item.ID)
	}
	c.items[item.ID] = item
	return nil
}

func (c *Catalog) Tours() []Tour {
	out := make([]Tour, 0, len(c.tours))
	for _, t := range c.tours {
		out = append(out, t.clone())
	}
	return out
}

func (c *Catalog) Wines() []Wine {
	return append([]Wine(nil), c.wines...)
}

func (c *Catalog) FindTour(id int64) (Tour, error) {
	for _, t := range c.tours {
		if t.ID == id {
			return t.clone(), nil
		}
	}
	return Tour{}, fmt.Errorf("tour %d: %w", id, ErrNotFound)
}

func (c *Catalog) FindWine(id int64) (Wine, error) {
	for _, w := range c.wines {
		if w.ID == id {
			return w, nil
		}
	}
	return Wine{}, fmt.Errorf("wine %d: %w", id, ErrNotFound)
}

// Find resolves an id of either kind.
func (c *Catalog) Find(id int64) (Item, error) {
	item, ok := c.items[id]
	if !ok {
		return Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return item, nil
}

// ToursByPrice returns the tours priced within [lo, hi].
func (c *Catalog) ToursByPrice(lo, hi int) []Tour {
	var out []Tour
	for _, t := range c.tours {
		if t.Price >= lo && t.Price <= hi {
			out = append(out, t.clone())
		}
	}
	return out
}

// ToursWithService matches service case-insensitively against every
// included item of a tour.
func (c *Catalog) ToursWithService(service string) []Tour {
	needle := strings.ToLower(strings.TrimSpace(service))
	var out []Tour
	for _, t := range c.tours {
		for _, inc := range t.Includes {
			if strings.Contains(strings.ToLower(inc), needle) {
				out = append(out, t.clone())
				break
			}
		}
	}
	return out
}

func (c *Catalog) Stats() Stats {
	stats := Stats{
		TotalTours: len(c.tours),
		TotalWines: len(c.wines),
		Wineries:   []string{},
	}
	for i, t := range c.tours {
		if i == 0 || t.Price < stats.MinTourPrice {
			stats.MinTourPrice = t.Price
		}
		if t.Price > stats.MaxTourPrice {
			stats.MaxTourPrice = t.Price
		}
	}

	seen := make(map[string]struct{})
	for _, w := range c.wines {
		if _, ok := seen[w.Winery]; !ok {
			seen[w.Winery] = struct{}{}
			stats.Wineries = append(stats.Wineries, w.Winery)
		}
	}
	sort.Strings(stats.Wineries)
	return stats
}
