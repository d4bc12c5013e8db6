package transform_test

import (
	"testing"
	"time"

	"go.plantopia.dev/etl/frame"
	"go.plantopia.dev/etl/transform"
)

func Test_NormalizeTypes(t *testing.T) {
	t.Parallel()

	tbl := frame.New("user_plants",
		[]frame.Field{
			{Name: "id", Kind: frame.KindFloat},
			{Name: "nickname", Kind: frame.KindString},
			{Name: "created_at", Kind: frame.KindString},
			{Name: "updated_at", Kind: frame.KindTime},
			{Name: "last_watered_at", Kind: frame.KindString},
		},
		[]frame.Row{
			{1.0, "Basil", "2024-01-02 03:04:05", nil, "2024-01-03 00:00:00"},
			{2.9, "Mint", "02/01/2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "soon"},
		},
	)

	out := transform.NormalizeTypes(tbl, now)

	kinds := []frame.Kind{frame.KindInt, frame.KindCategory, frame.KindTime, frame.KindTime, frame.KindTime}
	for i, k := range kinds {
		if out.Fields[i].Kind != k {
			t.Errorf("%s should be %s, but %s", out.Fields[i].Name, k, out.Fields[i].Kind)
		}
	}

	if out.Rows[0][0] != int64(1) || out.Rows[1][0] != int64(2) {
		t.Errorf("floats should be truncated, but %v, %v", out.Rows[0][0], out.Rows[1][0])
	}

	if ts := out.Rows[0][2].(time.Time); !ts.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("created_at should be parsed, but %s", ts)
	}

	if ts := out.Rows[1][2].(time.Time); !ts.Equal(now) {
		t.Errorf("unparsable created_at should be backfilled with %s, but %s", now, ts)
	}

	if ts := out.Rows[0][3].(time.Time); !ts.Equal(now) {
		t.Errorf("missing updated_at should be backfilled with %s, but %s", now, ts)
	}

	if out.Rows[1][4] != nil {
		t.Errorf("unparsable last_watered_at should stay missing, but %v", out.Rows[1][4])
	}

	if tbl.Fields[0].Kind != frame.KindFloat || tbl.Rows[1][0] != 2.9 {
		t.Error("input should be untouched")
	}

	again := transform.NormalizeTypes(out, now)
	for i := range out.Rows {
		for c := range out.Rows[i] {
			if again.Rows[i][c] != out.Rows[i][c] {
				t.Errorf("second normalize changed rows[%d][%d]: %v -> %v", i, c, out.Rows[i][c], again.Rows[i][c])
			}
		}
	}
}
