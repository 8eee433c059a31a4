// Package templates provides the built-in booth templates and loads custom
// template lists from JSON.
package templates

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/menta2k/booth-compositor/pkg/types"
)

var builtin = []types.Template{
	{
		ID:          "comic-boom",
		Name:        "Comic Boom",
		PhotoCount:  3,
		Layout:      types.LayoutStrip,
		Icon:        "💥",
		Decorations: []string{"comic speech bubbles", "BOOM text", "OMG stickers", "bright stars"},
		ThemeText:   "POW! BOOM!",
		Theme:       types.Theme{Accent: "#facc15"},
	},
	{
		ID:          "midnight-manor",
		Name:        "Midnight Manor",
		PhotoCount:  4,
		Layout:      types.LayoutGrid,
		Icon:        "🏰",
		Decorations: []string{"haunted castle silhouette", "flying bats", "purple moon glow", "spider webs"},
		ThemeText:   "SPOOKY NIGHT",
		Theme:       types.Theme{Accent: "#a855f7"},
	},
	{
		ID:          "pumpkin-patch",
		Name:        "Pumpkin Patch",
		PhotoCount:  3,
		Layout:      types.LayoutGrid,
		Icon:        "🎃",
		Decorations: []string{"smiling pumpkins", "autumn leaves", "twisting vines", "scarecrows"},
		ThemeText:   "HAPPY HALLOWEEN",
		Theme:       types.Theme{Accent: "#fdba74"},
	},
	{
		ID:          "ghostly-white",
		Name:        "Ghostly Fun",
		PhotoCount:  1,
		Layout:      types.LayoutSingle,
		Icon:        "👻",
		Decorations: []string{"cute floating ghosts", "white spider webs", "shimmering mist"},
		ThemeText:   "BOO TO YOU!",
		Theme:       types.Theme{Accent: "#ffffff"},
	},
	{
		ID:          "witch-magic",
		Name:        "Witch Magic",
		PhotoCount:  4,
		Layout:      types.LayoutStrip,
		Icon:        "🧙‍♀️",
		Decorations: []string{"witch hats", "bubbling cauldrons", "green magic sparkles", "black cats"},
		ThemeText:   "WICKED CUTE",
		Theme:       types.Theme{Accent: "#34d399"},
	},
	{
		ID:          "spider-web",
		Name:        "Spider Web",
		PhotoCount:  3,
		Layout:      types.LayoutStrip,
		Icon:        "🕷️",
		Decorations: []string{"intricate spider webs", "cute hanging spiders", "silver glitter"},
		ThemeText:   "WEB OF FUN",
		Theme:       types.Theme{Accent: "#64748b"},
	},
	{
		ID:          "halloween-circles",
		Name:        "Halloween Circles",
		PhotoCount:  3,
		Layout:      types.LayoutStrip,
		Icon:        "🧛",
		Decorations: []string{"purple gradients", "orange glow", "circular frames"},
		ThemeText:   "NIGHT TO REMEMBER",
		Theme:       types.Theme{Accent: "#fb923c"},
		FrameURL:    "/uploads/halloween design 6.png",
		// Tuned to the circular cutouts of the frame art
		Slots: []types.Slot{
			{X: 0.175, Y: 0.07, Width: 0.65, Height: 0.28},
			{X: 0.175, Y: 0.36, Width: 0.65, Height: 0.28},
			{X: 0.175, Y: 0.65, Width: 0.65, Height: 0.28},
		},
	},
}

// All returns copies of the built-in templates in display order.
func All() []types.Template {
	out := make([]types.Template, len(builtin))
	for i, t := range builtin {
		out[i] = clone(t)
	}
	return out
}

// Lookup finds a built-in template by id, ignoring case.
func Lookup(id string) (types.Template, bool) {
	return find(builtin, id)
}

// Find looks up id in list, ignoring case.
func Find(list []types.Template, id string) (types.Template, bool) {
	return find(list, id)
}

func find(list []types.Template, id string) (types.Template, bool) {
	id = strings.TrimSpace(id)
	for _, t := range list {
		if strings.EqualFold(t.ID, id) {
			return clone(t), true
		}
	}
	return types.Template{}, false
}

// LoadFile reads a JSON array of templates. Every template is validated, an
// empty layout is read as strip and ids must be unique.
func LoadFile(path string) ([]types.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}

	var list []types.Template
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse templates file: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("templates file %s contains no templates", path)
	}

	seen := make(map[string]bool, len(list))
	for i := range list {
		t := &list[i]
		if t.ID == "" {
			return nil, fmt.Errorf("template %d has no id", i)
		}
		key := strings.ToLower(t.ID)
		if seen[key] {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		seen[key] = true

		if t.Layout == "" {
			t.Layout = types.LayoutStrip
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func clone(t types.Template) types.Template {
	t.Slots = append([]types.Slot(nil), t.Slots...)
	t.Decorations = append([]string(nil), t.Decorations...)
	return t
}
