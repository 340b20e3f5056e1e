package feature

import (
	"math"
	"testing"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("Great Value, a USB-C cable ünïcode")
	want := []string{"great", "value", "usb", "cable", "ünïcode"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTfidf(t *testing.T) {
	docs := []string{"good cable", "good charger", "bad cable cable"}
	v := FitTfidf("review_title", docs)

	terms := v.Terms()
	want := []string{"bad", "cable", "charger", "good"}
	for i := range want {
		if terms[i] != want[i] {
			t.Fatalf("vocabulary = %v", terms)
		}
	}

	// idf(good) = ln(4/3)+1, idf(bad) = ln(4/2)+1
	if math.Abs(v.IDF[3]-(math.Log(4.0/3.0)+1)) > 1e-12 {
		t.Errorf("idf(good) = %v", v.IDF[3])
	}
	if math.Abs(v.IDF[0]-(math.Log(2)+1)) > 1e-12 {
		t.Errorf("idf(bad) = %v", v.IDF[0])
	}

	row := v.Transform("Cable cable BAD unknown")
	if len(row) != 2 || row[0].Index != 0 || row[1].Index != 1 {
		t.Fatalf("Transform = %+v", row)
	}
	var norm float64
	for _, e := range row {
		norm += e.Value * e.Value
	}
	if math.Abs(norm-1) > 1e-12 {
		t.Errorf("row not L2 normalised: %v", norm)
	}

	if got := v.Transform("nothing known"); got != nil {
		t.Errorf("unknown tokens should give an empty row, got %v", got)
	}
}
