package game

import (
	"slices"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		raw    string
		want   Choice
		wantOK bool
	}{
		{"r", Rock, true},
		{"p", Paper, true},
		{"s", Scissors, true},
		{"l", Lizard, true},
		{"k", Spock, true},
		{"rock", Rock, true},
		{"spock", Spock, true},
		{"x", None, false},
		{"", None, false},
		{"rs", None, false},
	}

	for _, tc := range cases {
		got, ok := Parse(tc.raw)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("Parse(%q) = (%v, %v), want (%v, %v)", tc.raw, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestBeats(t *testing.T) {
	wins := []struct{ a, b Choice }{
		{Rock, Scissors},
		{Rock, Lizard},
		{Paper, Rock},
		{Paper, Spock},
		{Scissors, Paper},
		{Scissors, Lizard},
		{Lizard, Spock},
		{Lizard, Paper},
		{Spock, Scissors},
		{Spock, Rock},
	}
	for _, w := range wins {
		if !Beats(w.a, w.b) {
			t.Errorf("want %v to beat %v", w.a, w.b)
		}
		if Beats(w.b, w.a) {
			t.Errorf("did not want %v to beat %v", w.b, w.a)
		}
	}

	// a symbol never beats itself
	for _, c := range []Choice{Rock, Paper, Scissors, Lizard, Spock} {
		if Beats(c, c) {
			t.Errorf("%v should not beat itself", c)
		}
	}
}

func TestExtended(t *testing.T) {
	for _, c := range []Choice{Rock, Paper, Scissors} {
		if c.Extended() {
			t.Errorf("%v should not be extended", c)
		}
	}
	for _, c := range []Choice{Lizard, Spock} {
		if !c.Extended() {
			t.Errorf("%v should be extended", c)
		}
	}
}

func TestWinningSet(t *testing.T) {
	cases := []struct {
		name    string
		present []Choice
		want    []Choice
	}{
		{
			name:    "two symbols have a unique winner",
			present: []Choice{Rock, Scissors},
			want:    []Choice{Rock},
		},
		{
			name:    "base cycle beats every symbol",
			present: []Choice{Rock, Paper, Scissors},
			want:    nil,
		},
		{
			name:    "spock survives rock and scissors",
			present: []Choice{Rock, Scissors, Spock},
			want:    []Choice{Spock},
		},
		{
			name:    "all five symbols form a cycle",
			present: []Choice{Rock, Paper, Scissors, Lizard, Spock},
			want:    nil,
		},
		{
			name:    "single symbol is unbeaten",
			present: []Choice{Paper},
			want:    []Choice{Paper},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := WinningSet(tc.present)
			if !slices.Equal(got, tc.want) {
				t.Fatalf("WinningSet(%v) = %v, want %v", tc.present, got, tc.want)
			}
		})
	}
}
