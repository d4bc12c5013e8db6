package transform

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"go.plantopia.dev/etl/frame"
)

// NormalizePlantName drops the descriptive suffix some sources append to
// plant names and title-cases the rest: "Tomato - Cherry Variety" becomes
// "Tomato". The missing placeholder is kept.
func NormalizePlantName(name string) string {
	caser := cases.Title(language.Und)

	for _, sep := range []string{" -", "-"} {
		head, _, _ := strings.Cut(name, sep)
		name = caser.String(strings.TrimSpace(head))
	}

	if name == "" {
		return MissingText
	}

	return name
}

func normalizePlantNames(t *frame.Table) (*frame.Table, error) {
	return t.MapColumn("plant_name", func(v any) any {
		s, ok := v.(string)
		if !ok {
			return v
		}
		return NormalizePlantName(s)
	})
}
