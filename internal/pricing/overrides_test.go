package pricing

import "testing"

func TestOnspotDefault(t *testing.T) {
	cases := []struct {
		pax, days int
		want      float64
	}{
		{13, 3, 81},
		{1, 1, 27},
		{0, 5, 27},
		{6, 0, 27},
		{12, 4, 72},
		{7, 10, 180},
		{-3, 2, 27},
	}
	for _, tc := range cases {
		if got := OnspotDefault(tc.pax, tc.days); got != tc.want {
			t.Fatalf("OnspotDefault(%d, %d) = %v, want %v", tc.pax, tc.days, got, tc.want)
		}
	}
}

func TestHassleDefault(t *testing.T) {
	if got := HassleDefault(4); got != 600 {
		t.Fatalf("expected 600, got %v", got)
	}
	if got := HassleDefault(-1); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestEffectiveOverrideWins(t *testing.T) {
	def := OnspotDefault(13, 3)
	if got := Effective(Float(50), def); got != 50 {
		t.Fatalf("expected override 50, got %v", got)
	}
	if got := Effective(nil, def); got != 81 {
		t.Fatalf("expected default 81, got %v", got)
	}
	// an unset override keeps tracking the live default
	if got := Effective(nil, OnspotDefault(13, 4)); got != 108 {
		t.Fatalf("expected default 108, got %v", got)
	}
}

func TestOverrideCommitClamps(t *testing.T) {
	if got := TypeOverride("12"); got != 12 {
		t.Fatalf("typing must not clamp, got %v", got)
	}
	if got := CommitOnspot("12"); got != 27 {
		t.Fatalf("expected onspot clamp to 27, got %v", got)
	}
	if got := CommitOnspot("40,5"); got != 40.5 {
		t.Fatalf("expected 40.5, got %v", got)
	}
	if got := CommitHassle("-30"); got != 0 {
		t.Fatalf("expected hassle clamp to 0, got %v", got)
	}
	if got := CommitHassle("450"); got != 450 {
		t.Fatalf("expected 450, got %v", got)
	}
}
