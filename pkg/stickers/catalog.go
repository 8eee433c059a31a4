package stickers

// Asset is a built-in sticker glyph.
type Asset struct {
	Glyph string `json:"glyph"`
	Label string `json:"label"`
}

var catalog = []Asset{
	{"👻", "Spooky Ghost"},
	{"🎃", "Jack-o-Lantern"},
	{"🦇", "Scary Bat"},
	{"🕸️", "Cobweb"},
	{"🕷️", "Crawler"},
	{"🌙", "Moon"},
	{"🐈‍⬛", "Void Cat"},
	{"🧙‍♀️", "Witch"},
	{"🎩", "Hat"},
	{"🧹", "Broomstick"},
	{"💀", "Skull"},
	{"🦴", "Bone"},
	{"⚰️", "Coffin"},
	{"🧪", "Green Potion"},
	{"🫧", "Cauldron Bubbles"},
	{"🍬", "Candy Corn"},
	{"🍭", "Sweet Treat"},
	{"🕯️", "Candle"},
	{"🧛", "Vampire"},
	{"🧟", "Zombie"},
	{"🦉", "Hoot Owl"},
	{"🐀", "Rat"},
	{"🌲", "Dark Tree"},
	{"🍂", "Dead Leaves"},
}

// Catalog returns the built-in sticker assets.
func Catalog() []Asset {
	out := make([]Asset, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a built-in asset by glyph or case-sensitive label.
func Lookup(key string) (Asset, bool) {
	for _, a := range catalog {
		if a.Glyph == key || a.Label == key {
			return a, true
		}
	}
	return Asset{}, false
}
