package preprocess

import (
	"testing"

	"github.com/rushteam/recpipe/dataset"
)

func TestExpand(t *testing.T) {
	rows := []dataset.Interaction{
		{ProductID: "P1", UserID: "U1,U2,U3", UserName: "a,b,c", ReviewTitle: "t1,t2,t3", Rating: 4},
		{ProductID: "P2", UserID: "U4", UserName: "d", ReviewTitle: "t4", Rating: 3},
	}
	out, stats := Expand(rows)
	if len(out) != 4 || stats.Output != 4 || stats.MismatchedRows != 0 {
		t.Fatalf("out=%d stats=%+v", len(out), stats)
	}
	if len(out) < len(rows) {
		t.Errorf("expansion shrank the data")
	}
	want := []string{"U1", "U2", "U3", "U4"}
	for i, r := range out {
		if r.UserID != want[i] {
			t.Errorf("row %d UserID = %q, want %q", i, r.UserID, want[i])
		}
	}
	if out[1].UserName != "b" || out[1].ReviewTitle != "t2" || out[1].ProductID != "P1" || out[1].Rating != 4 {
		t.Errorf("fields not zipped positionally: %+v", out[1])
	}
}

func TestExpand_Mismatch(t *testing.T) {
	rows := []dataset.Interaction{
		// 三个 user_id，但只有两个标题
		{ProductID: "P1", UserID: "U1,U2,U3", UserName: "a,b,c", ReviewTitle: "t1,t2"},
	}
	out, stats := Expand(rows)
	if len(out) != 2 {
		t.Fatalf("got %d rows, want truncation to 2", len(out))
	}
	if stats.MismatchedRows != 1 || stats.DroppedEntries != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSplitCategory(t *testing.T) {
	tests := []struct {
		in, first, last string
	}{
		{"Computers&Accessories|Cables|USBCables", "Computers&Accessories", "USBCables"},
		{"Electronics", "Electronics", "Electronics"},
		{"A|B", "A", "B"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, l := SplitCategory(tt.in)
			if f != tt.first || l != tt.last {
				t.Errorf("SplitCategory(%q) = %q,%q", tt.in, f, l)
			}
		})
	}

	rows := []dataset.Interaction{{Category: "X|Y|Z"}}
	SplitCategories(rows)
	if rows[0].FirstCategory != "X" || rows[0].LastCategory != "Z" {
		t.Errorf("SplitCategories = %+v", rows[0])
	}
}
