package shared

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"hotel_pricing/internal/domain"
	"hotel_pricing/internal/pricing"
)

// Catalog is the file-backed part of the configuration: pricing rules and our
// own hotels with their ordered room lists.
type Catalog struct {
	Rules  pricing.Rules  `yaml:"rules"`
	Hotels []domain.Hotel `yaml:"hotels"`
}

var defaultRooms = []domain.RoomType{
	{Name: "Standard King", TypeID: "R1"},
	{Name: "Deluxe Suite", TypeID: "R2"},
}

// DefaultCatalog is used when no CATALOG_FILE is configured.
func DefaultCatalog() Catalog {
	hotel := func(id, name string, lat, lon float64) domain.Hotel {
		rooms := make([]domain.RoomType, len(defaultRooms))
		copy(rooms, defaultRooms)
		return domain.Hotel{ID: id, Name: name, Coords: domain.Coords{Lat: lat, Lon: lon}, Rooms: rooms}
	}
	return Catalog{
		Rules: pricing.DefaultRules(),
		Hotels: []domain.Hotel{
			hotel("grand-hotel-tijuana", "Grand Hotel Tijuana", 32.5149, -117.0382),
			hotel("hotel-real-del-rio", "Hotel Real del Río", 32.5283, -117.0187),
			hotel("hotel-pueblo-amigo", "Hotel Pueblo Amigo", 32.5208, -117.0278),
			hotel("hotel-ticuan", "Hotel Ticuan", 32.5234, -117.0312),
			hotel("hotel-lucerna", "Hotel Lucerna", 32.5267, -117.0256),
			hotel("hotel-fiesta-inn", "Hotel Fiesta Inn", 32.5212, -117.0298),
			hotel("hotel-marriott", "Hotel Marriott", 32.5245, -117.0334),
			hotel("hotel-holiday-inn", "Hotel Holiday Inn", 32.5198, -117.0267),
			hotel("hotel-best-western", "Hotel Best Western", 32.5221, -117.0289),
			hotel("hotel-comfort-inn", "Hotel Comfort Inn", 32.5256, -117.0321),
		},
	}
}

// LoadCatalog reads path as YAML. An empty path yields DefaultCatalog.
// Sections left out of the file keep their defaults.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(b)
}

// rulesFile mirrors pricing.Rules with pointers so an explicit zero in the
// file is told apart from an omitted key.
type rulesFile struct {
	UndercutPct      *float64                  `yaml:"undercut_pct"`
	EventImpact      map[domain.Impact]float64 `yaml:"event_impact"`
	BasePrices       map[string]float64        `yaml:"base_prices"`
	DefaultBasePrice *float64                  `yaml:"default_base_price"`
}

func ParseCatalog(b []byte) (Catalog, error) {
	var raw struct {
		Rules  *rulesFile     `yaml:"rules"`
		Hotels []domain.Hotel `yaml:"hotels"`
	}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}

	c := DefaultCatalog()
	if raw.Rules != nil {
		c.Rules = mergeRules(c.Rules, *raw.Rules)
	}
	if len(raw.Hotels) > 0 {
		c.Hotels = raw.Hotels
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	log.Debug().Int("hotels", len(c.Hotels)).Msg("catalog loaded")
	return c, nil
}

// mergeRules overlays the keys present in the file on def.
func mergeRules(def pricing.Rules, override rulesFile) pricing.Rules {
	out := def
	if override.UndercutPct != nil {
		out.UndercutPct = *override.UndercutPct
	}
	if override.DefaultBasePrice != nil {
		out.DefaultBasePrice = *override.DefaultBasePrice
	}
	if override.EventImpact != nil {
		out.EventImpact = override.EventImpact
	}
	if override.BasePrices != nil {
		out.BasePrices = override.BasePrices
	}
	return out
}

func (c Catalog) Validate() error {
	errs := []error{c.Rules.Validate()}
	if len(c.Hotels) == 0 {
		errs = append(errs, errors.New("catalog has no hotels"))
	}
	seen := make(map[string]struct{}, len(c.Hotels))
	for i, h := range c.Hotels {
		if h.ID == "" {
			errs = append(errs, fmt.Errorf("hotels[%d]: id is required", i))
			continue
		}
		if _, dup := seen[h.ID]; dup {
			errs = append(errs, fmt.Errorf("hotels[%d]: duplicate id %q", i, h.ID))
		}
		seen[h.ID] = struct{}{}
		for j, r := range h.Rooms {
			if r.TypeID == "" {
				errs = append(errs, fmt.Errorf("hotels[%d].rooms[%d]: type_id is required", i, j))
			}
		}
	}
	return errors.Join(errs...)
}

func (c Catalog) Hotel(id string) (domain.Hotel, bool) {
	for _, h := range c.Hotels {
		if h.ID == id {
			return h, true
		}
	}
	return domain.Hotel{}, false
}
