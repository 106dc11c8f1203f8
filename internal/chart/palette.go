package chart

// Theme selects a colour palette
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Palette holds the colours used for one theme
type Palette struct {
	Series []string `json:"series"`
	Text   string   `json:"text"`
	Grid   string   `json:"grid"`
}

var palettes = map[Theme]Palette{
	ThemeLight: {
		Series: []string{"#4E79A7", "#F28E2B", "#E15759", "#76B7B2", "#59A14F", "#EDC948", "#B07AA1", "#FF9DA7"},
		Text:   "#333333",
		Grid:   "#E5E5E5",
	},
	ThemeDark: {
		Series: []string{"#8AB4F8", "#FDD663", "#F28B82", "#81C995", "#78D9EC", "#FCAD70", "#D7AEFB", "#FF8BCB"},
		Text:   "#E8EAED",
		Grid:   "#3C4043",
	},
}

// ParseTheme maps a theme name to a Theme; unknown names fall back to light
func ParseTheme(s string) Theme {
	if _, ok := palettes[Theme(s)]; ok {
		return Theme(s)
	}
	return ThemeLight
}

// PaletteFor returns the palette of a theme, light for unknown themes
func PaletteFor(theme Theme) Palette {
	return palettes[ParseTheme(string(theme))]
}

// Color returns the i-th series colour, cycling through the palette
func (p Palette) Color(i int) string {
	return p.Series[i%len(p.Series)]
}

func (p Palette) colors(count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = p.Color(i)
	}
	return out
}
