package models

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Worker Placement", "worker-placement"},
		{"Deck, Bag, and Pool Building", "deck-bag-and-pool-building"},
		{"  Area Majority / Influence  ", "area-majority-influence"},
		{"Co-operative Play", "co-operative-play"},
		{"I Cut, You Choose", "i-cut-you-choose"},
		{"---", ""},
		{"", ""},
		{"Rondel", "rondel"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTagsChecksumOrderInsensitive(t *testing.T) {
	a := TagsChecksum([]string{"Worker Placement", "Set Collection"})
	b := TagsChecksum([]string{"Set Collection", "Worker Placement"})
	if a != b {
		t.Fatalf("checksum depends on ordering: %s vs %s", a, b)
	}
}

func TestTagsChecksumNormalization(t *testing.T) {
	a := TagsChecksum([]string{"  Worker Placement ", ""})
	b := TagsChecksum([]string{"worker placement"})
	if a != b {
		t.Fatalf("checksum not normalized: %s vs %s", a, b)
	}
}

func TestTagsChecksumDetectsChange(t *testing.T) {
	a := TagsChecksum([]string{"Worker Placement"})
	b := TagsChecksum([]string{"Worker Placement", "Rondel"})
	if a == b {
		t.Fatal("different tag sets produced the same checksum")
	}
}
