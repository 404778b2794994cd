package models

// SlotCount is the fixed number of positions in a spin
const SlotCount = 3

// Slot positions in a spin result
const (
	SlotMain    = 0
	SlotSide    = 1
	SlotDessert = 2
)

// SlotLabels names each slot position, indexed by slot
var SlotLabels = [SlotCount]string{"Main", "Side", "Dessert"}

// Dish represents a menu item drawn into a slot
type Dish struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Price    float64 `json:"price,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
}

// Triple is a full set of slots; a nil entry means the slot has not been drawn
type Triple [SlotCount]*Dish

// ValidSlot reports whether idx addresses one of the fixed slots
func ValidSlot(idx int) bool {
	return idx >= 0 && idx < SlotCount
}

// Clone returns a copy of the triple whose dishes do not alias the original
func (t Triple) Clone() Triple {
	var out Triple
	for i, d := range t {
		if d != nil {
			cp := *d
			out[i] = &cp
		}
	}
	return out
}

// LockedSlot pins a dish to a slot index across a spin
type LockedSlot struct {
	Index  int    `json:"index"`
	DishID string `json:"dishId"`
}
