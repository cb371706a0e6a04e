package assembly

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
)

var namedColors = map[string]color.RGBA{
	"black":  {A: 255},
	"white":  {R: 255, G: 255, B: 255, A: 255},
	"gray":   {R: 128, G: 128, B: 128, A: 255},
	"grey":   {R: 128, G: 128, B: 128, A: 255},
	"silver": {R: 192, G: 192, B: 192, A: 255},
	"red":    {R: 255, A: 255},
	"green":  {G: 128, A: 255},
	"blue":   {B: 255, A: 255},
	"yellow": {R: 255, G: 255, A: 255},
	"orange": {R: 255, G: 165, A: 255},
}

// NamedColor returns the colour for a name such as "gray" or "black".
// Names are case insensitive.
func NamedColor(name string) (color.RGBA, error) {
	c, ok := namedColors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return color.RGBA{}, fmt.Errorf("unknown color %q (known: %s)", name, strings.Join(colorNames(), ", "))
	}
	return c, nil
}

func colorNames() []string {
	names := make([]string, 0, len(namedColors))
	for k := range namedColors {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
