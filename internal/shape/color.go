package shape

import (
	"crypto/md5"
	"fmt"
	"image/color"
	"math/big"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an 8-bit RGBA color. It implements color.Color with
// non-premultiplied semantics, so the alpha channel is kept as written.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

// Hex formats the color as "#RRGGBBAA".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

// WithAlpha returns a copy of c with its alpha channel replaced.
func (c Color) WithAlpha(a uint8) Color {
	c.A = a
	return c
}

// ParseHex parses "#RRGGBB" or "#RRGGBBAA". A missing alpha channel means
// fully opaque.
func ParseHex(s string) (Color, error) {
	s = strings.TrimSpace(s)
	alpha := uint8(255)
	if len(s) == 9 && strings.HasPrefix(s, "#") {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid alpha in color %q: %w", s, err)
		}
		alpha = uint8(a)
		s = s[:7]
	}
	if len(s) != 7 {
		return Color{}, fmt.Errorf("invalid color %q: want #RRGGBB or #RRGGBBAA", s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.Clamped().RGB255()
	return Color{R: r, G: g, B: b, A: alpha}, nil
}

// Defaults holds the project-wide line and fill colors applied to shapes that
// carry no override of their own.
type Defaults struct {
	Line Color `json:"line_color"`
	Fill Color `json:"fill_color"`
}

// StandardDefaults returns the stock colors: translucent green outline and
// translucent red fill.
func StandardDefaults() Defaults {
	return Defaults{
		Line: Color{R: 0, G: 255, B: 0, A: 128},
		Fill: Color{R: 255, G: 0, B: 0, A: 128},
	}
}

// ResolveColor returns *override when set, otherwise def.
func ResolveColor(override *Color, def Color) Color {
	if override != nil {
		return *override
	}
	return def
}

// labelPalette is the fixed set of colors labels are hashed onto.
var labelPalette = []string{
	"#FF6384", "#36A2EB", "#FFCD56", "#4BC0C0", "#9966FF", "#FF9F40",
	"#C7C7C7", "#5366FF", "#FF63FF", "#63FF84", "#FFCE54", "#2ECC71",
	"#9B59B6", "#3498DB", "#F1C40F", "#E67E22", "#E74C3C", "#95A5A6",
}

// LabelAlpha is the alpha channel given to label-derived colors.
const LabelAlpha = 128

// LabelColor picks a deterministic palette color for a label. The same label
// always maps to the same color; the result carries LabelAlpha.
func LabelColor(label string) Color {
	sum := md5.Sum([]byte(label))
	idx := new(big.Int).Mod(new(big.Int).SetBytes(sum[:]), big.NewInt(int64(len(labelPalette))))
	c, err := colorful.Hex(labelPalette[idx.Int64()])
	if err != nil {
		// palette entries are constants
		panic(err)
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b, A: LabelAlpha}
}
