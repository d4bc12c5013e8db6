// Package transform turns staged operational tables into the star schema:
// cleansing, type normalization and the hand-coded dimension and fact plan.
package transform

import (
	"context"
	"html"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"go.plantopia.dev/etl/frame"
)

// MissingText replaces missing textual values.
const MissingText = "-"

var tagRE = regexp.MustCompile(`<.*?>`)

// StripHTML removes markup and decodes entities until neither is left.
// Plain text comes back unchanged.
//
// The loop ends: a pass that changes s either lowers the number of '<' and
// '&' bytes, or keeps it and shortens s. Removing a tag drops a '<'. An
// entity decoding to '<' or '&' is a single byte replacing a longer
// reference, and any other entity drops its '&'.
func StripHTML(s string) string {
	for {
		next := html.UnescapeString(tagRE.ReplaceAllString(s, ""))
		if next == s {
			return s
		}
		s = next
	}
}

// Cleanser fills missing values, strips markup and drops duplicate rows.
type Cleanser struct {
	// NumericFill replaces missing numbers.
	NumericFill int64
	// Now replaces missing timestamps.
	Now time.Time
}

// ForDimension cleanses dimension and staging tables: missing numbers become 0.
func ForDimension(now time.Time) Cleanser {
	return Cleanser{NumericFill: 0, Now: now}
}

// ForFact cleanses fact tables: missing numbers become -1, meaning no match.
func ForFact(now time.Time) Cleanser {
	return Cleanser{NumericFill: -1, Now: now}
}

// Report summarizes what a cleanse changed.
type Report struct {
	Table      string
	Filled     map[string]int
	Duplicates int
}

// Cleanse returns a cleansed copy of t. Applying it to its own output changes
// nothing.
func (c Cleanser) Cleanse(ctx context.Context, t *frame.Table) (*frame.Table, Report) {
	l := log.Ctx(ctx).With().Str("table", t.Name).Logger()

	out := t.Clone()
	rep := Report{Table: t.Name, Filled: map[string]int{}}

	for i, f := range out.Fields {
		fill := c.fillValue(f.Kind)

		for _, r := range out.Rows {
			if r[i] == nil && fill != nil {
				r[i] = fill
				rep.Filled[f.Name]++
			}
		}

		if n := rep.Filled[f.Name]; n > 0 {
			l.Debug().Str("column", f.Name).Int("count", n).Msgf("filled missing values with %v", fill)
		}

		if !f.Kind.Textual() {
			continue
		}

		for _, r := range out.Rows {
			s, ok := r[i].(string)
			if !ok {
				continue
			}
			if s = StripHTML(s); s == "" {
				s = MissingText
			}
			r[i] = s
		}
	}

	out, rep.Duplicates = out.DropDuplicates()
	l.Info().Int("duplicates", rep.Duplicates).Int("rows", out.Len()).Msg("cleansed table")

	return out, rep
}

func (c Cleanser) fillValue(k frame.Kind) any {
	switch k {
	case frame.KindInt:
		return c.NumericFill
	case frame.KindFloat:
		return float64(c.NumericFill)
	case frame.KindString, frame.KindCategory:
		return MissingText
	case frame.KindTime:
		return c.Now.UTC()
	}
	return nil
}
