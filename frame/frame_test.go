package frame_test

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"golang.org/x/xerrors"

	"go.plantopia.dev/etl/frame"
)

func mustRead(t *testing.T, name, raw string) *frame.Table {
	t.Helper()

	tbl, err := frame.ReadCSV(name, strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	return tbl
}

func Test_InferKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		values []string
		expect frame.Kind
	}{
		{name: "ints", values: []string{"1", "2", "-3"}, expect: frame.KindInt},
		{name: "ints with missing", values: []string{"1", "", "3"}, expect: frame.KindInt},
		{name: "floats", values: []string{"1", "2.5"}, expect: frame.KindFloat},
		{name: "bools", values: []string{"true", "False"}, expect: frame.KindBool},
		{name: "timestamps", values: []string{"2024-01-02 03:04:05", "2024-01-02 03:04:05.123456"}, expect: frame.KindTime},
		{name: "text", values: []string{"1", "basil"}, expect: frame.KindString},
		{name: "all missing", values: []string{"", ""}, expect: frame.KindString},
		{name: "empty", values: nil, expect: frame.KindString},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			if actual := frame.InferKind(c.values); actual != c.expect {
				t.Errorf("Expected %s but %s", c.expect, actual)
			}
		})
	}
}

func Test_ReadCSV(t *testing.T) {
	t.Parallel()

	tbl := mustRead(t, "users", "\ufeffid,name,created_at\n1,Alice,2024-01-02 03:04:05\n2,,\n")

	expected := []frame.Field{
		{Name: "id", Kind: frame.KindInt},
		{Name: "name", Kind: frame.KindString},
		{Name: "created_at", Kind: frame.KindTime},
	}
	if !reflect.DeepEqual(tbl.Fields, expected) {
		t.Fatalf("fields should be %+v, but %+v", expected, tbl.Fields)
	}

	if tbl.Len() != 2 {
		t.Fatalf("Size of rows should be 2, but %d", tbl.Len())
	}

	if tbl.Rows[0][0] != int64(1) {
		t.Errorf(`rows[0][0] should be 1, but %v`, tbl.Rows[0][0])
	}

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if !tbl.Rows[0][2].(time.Time).Equal(ts) {
		t.Errorf(`rows[0][2] should be %s, but %v`, ts, tbl.Rows[0][2])
	}

	if tbl.Rows[1][1] != nil || tbl.Rows[1][2] != nil {
		t.Errorf("empty fields should be missing, but %v", tbl.Rows[1])
	}
}

func Test_WriteCSV(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 2, 3, 4, 5, 120000000, time.UTC)
	tbl := frame.New("t",
		[]frame.Field{
			{Name: "id", Kind: frame.KindInt},
			{Name: "ratio", Kind: frame.KindFloat},
			{Name: "note", Kind: frame.KindString},
			{Name: "at", Kind: frame.KindTime},
		},
		[]frame.Row{
			{int64(1), 0.5, "a,b", ts},
			{int64(2), nil, nil, nil},
		},
	)

	buf := &bytes.Buffer{}
	if err := frame.WriteCSV(buf, tbl); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := "id,ratio,note,at\n1,0.5,\"a,b\",2024-01-02 03:04:05.12\n2,,,\n"
	if buf.String() != expected {
		t.Errorf("csv should be %q, but %q", expected, buf.String())
	}

	back := mustRead(t, "t", buf.String())
	if !reflect.DeepEqual(back.Rows[1], frame.Row{int64(2), nil, nil, nil}) {
		t.Errorf("missing values should survive a round trip, but %v", back.Rows[1])
	}
}

func Test_Rename(t *testing.T) {
	t.Parallel()

	tbl := mustRead(t, "users", "id,name\n1,Alice\n")

	renamed, err := tbl.Rename(map[string]string{"id": "user_id", "name": "user_name"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(renamed.Columns(), []string{"user_id", "user_name"}) {
		t.Errorf("columns should be renamed, but %v", renamed.Columns())
	}

	if !reflect.DeepEqual(tbl.Columns(), []string{"id", "name"}) {
		t.Errorf("source table should be untouched, but %v", tbl.Columns())
	}

	if _, err := tbl.Rename(map[string]string{"missing": "x"}); !xerrors.Is(err, frame.ErrColumnNotFound) {
		t.Errorf("expected ErrColumnNotFound but %v", err)
	}

	if _, err := tbl.Rename(map[string]string{"id": "name"}); err == nil {
		t.Error("expected error for duplicate column names but no error occurred")
	}
}

func Test_Select(t *testing.T) {
	t.Parallel()

	tbl := mustRead(t, "t", "a,b,c\n1,2,3\n")

	sel, err := tbl.Select("c", "a")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(sel.Rows[0], frame.Row{int64(3), int64(1)}) {
		t.Errorf("row should be [3 1], but %v", sel.Rows[0])
	}

	if _, err := tbl.Select("a", "z"); !xerrors.Is(err, frame.ErrColumnNotFound) {
		t.Errorf("expected ErrColumnNotFound but %v", err)
	}
}

func Test_Merge(t *testing.T) {
	t.Parallel()

	plants := mustRead(t, "user_plants", "id,user_id,created_at\n10,1,2024-01-01 00:00:00\n11,2,2024-01-01 00:00:00\n12,9,2024-01-01 00:00:00\n")
	users := mustRead(t, "users", "user_id,user_name,created_at\n1,Alice,2023-01-01 00:00:00\n2,Bob,2023-01-01 00:00:00\n3,Carol,2023-01-01 00:00:00\n")

	t.Run("left", func(t *testing.T) {
		t.Parallel()

		m, err := frame.Merge(plants, users, frame.MergeOptions{On: []string{"user_id"}, How: frame.Left, Suffixes: [2]string{"", "_user"}})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		expected := []string{"id", "user_id", "created_at", "user_name", "created_at_user"}
		if !reflect.DeepEqual(m.Columns(), expected) {
			t.Fatalf("columns should be %v, but %v", expected, m.Columns())
		}

		if m.Len() != 3 {
			t.Fatalf("Size of rows should be 3, but %d", m.Len())
		}

		if m.Rows[0][3] != "Alice" || m.Rows[1][3] != "Bob" {
			t.Errorf("user names should be joined, but %v, %v", m.Rows[0][3], m.Rows[1][3])
		}

		if m.Rows[2][3] != nil {
			t.Errorf("unmatched row should have missing user_name, but %v", m.Rows[2][3])
		}
	})

	t.Run("inner", func(t *testing.T) {
		t.Parallel()

		m, err := frame.Merge(plants, users, frame.MergeOptions{On: []string{"user_id"}, How: frame.Inner, Suffixes: [2]string{"_a", "_b"}})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if m.Len() != 2 {
			t.Fatalf("Size of rows should be 2, but %d", m.Len())
		}

		if !m.Has("created_at_a") || !m.Has("created_at_b") {
			t.Errorf("overlapping columns should be suffixed, but %v", m.Columns())
		}
	})

	t.Run("outer", func(t *testing.T) {
		t.Parallel()

		m, err := frame.Merge(plants, users, frame.MergeOptions{On: []string{"user_id"}, How: frame.Outer, Suffixes: [2]string{"", "_user"}})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if m.Len() != 4 {
			t.Fatalf("Size of rows should be 4, but %d", m.Len())
		}

		last := m.Rows[3]
		if last[0] != nil || last[1] != int64(3) || last[3] != "Carol" {
			t.Errorf("unmatched right row should carry its key, but %v", last)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		_, err := frame.Merge(plants, users, frame.MergeOptions{On: []string{"plant_id"}})
		if !xerrors.Is(err, frame.ErrColumnNotFound) {
			t.Errorf("expected ErrColumnNotFound but %v", err)
		}
	})

	t.Run("overlap without suffixes", func(t *testing.T) {
		t.Parallel()

		if _, err := frame.Merge(plants, users, frame.MergeOptions{On: []string{"user_id"}}); err == nil {
			t.Error("expected error but no error occurred")
		}
	})
}

func Test_Merge_MultipleKeys(t *testing.T) {
	t.Parallel()

	owned := mustRead(t, "owned", "my_plant_id,user_name,plant_name\n1,Alice,Basil\n2,Bob,Mint\n")
	watered := mustRead(t, "watered", "watering_history_id,user_name,plant_name\n7,Bob,Mint\n8,Bob,Mint\n")

	m, err := frame.Merge(owned, watered, frame.MergeOptions{On: []string{"user_name", "plant_name"}, How: frame.Outer})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if m.Len() != 3 {
		t.Fatalf("Size of rows should be 3, but %d", m.Len())
	}

	if m.Rows[0][3] != nil {
		t.Errorf("Alice/Basil has no watering, but %v", m.Rows[0][3])
	}

	if m.Rows[1][3] != int64(7) || m.Rows[2][3] != int64(8) {
		t.Errorf("Bob/Mint should match both waterings, but %v, %v", m.Rows[1][3], m.Rows[2][3])
	}
}

func Test_Counters(t *testing.T) {
	t.Parallel()

	tbl := mustRead(t, "t", "a,b\n1,x\n1,x\n2,\n,y\n")

	n, err := tbl.DistinctCount("a")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("distinct count should be 2, but %d", n)
	}

	if d := tbl.DuplicateCount(); d != 1 {
		t.Errorf("duplicate count should be 1, but %d", d)
	}

	dedup, dropped := tbl.DropDuplicates()
	if dropped != 1 || dedup.Len() != 3 {
		t.Errorf("one row should be dropped, but %d dropped and %d left", dropped, dedup.Len())
	}

	withCount := dedup.WithConstant("total", int64(n))
	for i, r := range withCount.Rows {
		if r[2] != int64(2) {
			t.Errorf("rows[%d].total should be 2, but %v", i, r[2])
		}
	}
	if dedup.Has("total") {
		t.Error("WithConstant should not modify its receiver")
	}
}

func Test_DropDuplicates_ControlBytes(t *testing.T) {
	t.Parallel()

	fields := []frame.Field{{Name: "a", Kind: frame.KindString}, {Name: "b", Kind: frame.KindString}}
	tbl := frame.New("t", fields, []frame.Row{
		{"x\x1fy", "z"},
		{"x", "y\x1fz"},
		{nil, "z"},
		{"\x00", "z"},
		{"~", "z"},
	})

	dedup, dropped := tbl.DropDuplicates()
	if dropped != 0 || dedup.Len() != 5 {
		t.Errorf("distinct rows should be kept, but %d dropped and %d left", dropped, dedup.Len())
	}
}

func Test_Merge_ControlBytes(t *testing.T) {
	t.Parallel()

	left := frame.New("left", []frame.Field{
		{Name: "a", Kind: frame.KindString},
		{Name: "b", Kind: frame.KindString},
	}, []frame.Row{{"x\x1fy", "z"}})
	right := frame.New("right", []frame.Field{
		{Name: "a", Kind: frame.KindString},
		{Name: "b", Kind: frame.KindString},
		{Name: "v", Kind: frame.KindInt},
	}, []frame.Row{{"x", "y\x1fz", int64(1)}})

	m, err := frame.Merge(left, right, frame.MergeOptions{On: []string{"a", "b"}, How: frame.Inner})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if m.Len() != 0 {
		t.Errorf("different keys should not match, but %d rows", m.Len())
	}
}
