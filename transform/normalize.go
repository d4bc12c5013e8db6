package transform

import (
	"math"
	"time"

	"github.com/samber/lo"

	"go.plantopia.dev/etl/frame"
)

// TimeColumns are parsed from frame.TimeLayout into timestamps.
var TimeColumns = []string{"created_at", "updated_at", "last_watered_at"}

// backfilled time columns get the processing time when unparsable.
// last_watered_at may stay missing.
var backfilled = []string{"created_at", "updated_at"}

// NormalizeTypes returns a copy of t with text as categories, fractional
// numbers truncated to integers and the time columns parsed.
//
// Truncation is lossy. It is only sound because float columns in this data
// come from integer columns that were upcast while holding missing values.
func NormalizeTypes(t *frame.Table, now time.Time) *frame.Table {
	out := t.Clone()

	for i, f := range out.Fields {
		switch {
		case lo.Contains(TimeColumns, f.Name):
			out.Fields[i].Kind = frame.KindTime
			for _, r := range out.Rows {
				r[i] = parseTimeValue(r[i])
				if r[i] == nil && lo.Contains(backfilled, f.Name) {
					r[i] = now.UTC()
				}
			}
		case f.Kind == frame.KindString:
			out.Fields[i].Kind = frame.KindCategory
		case f.Kind == frame.KindFloat:
			out.Fields[i].Kind = frame.KindInt
			for _, r := range out.Rows {
				if v, ok := r[i].(float64); ok {
					r[i] = int64(math.Trunc(v))
				}
			}
		}
	}

	return out
}

func parseTimeValue(v any) any {
	switch v := v.(type) {
	case time.Time:
		return v
	case string:
		ts, err := time.Parse(frame.TimeLayout, v)
		if err != nil {
			return nil
		}
		return ts.UTC()
	}
	return nil
}
