package cache

import "testing"

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "prefix only",
			key:  NewKey("exchange-rates", nil),
			want: "exchange-rates",
		},
		{
			name: "single param",
			key:  NewKey("simple-price", map[string]string{"ids": "bitcoin"}),
			want: "simple-price:ids=bitcoin",
		},
		{
			name: "multiple params sorted",
			key: NewKey("market-chart", map[string]string{
				"vs":   "usd",
				"days": "7",
				"id":   "bitcoin",
			}),
			want: "market-chart:days=7:id=bitcoin:vs=usd",
		},
		{
			name: "surrounding colons trimmed from prefix",
			key:  NewKey(":coin-markets:", map[string]string{"page": "1"}),
			want: "coin-markets:page=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Identical logical requests must yield identical keys regardless of how
// the parameter map was built.
func TestKey_Deterministic(t *testing.T) {
	a := NewKey("simple-price", map[string]string{
		"ids": "bitcoin,ethereum",
		"vs":  "usd",
	})

	b := NewKey("simple-price", func() map[string]string {
		m := make(map[string]string)
		m["vs"] = "usd"
		m["ids"] = "bitcoin,ethereum"
		return m
	}())

	// Repeated to shake out map iteration order effects.
	for i := 0; i < 50; i++ {
		if a.String() != b.String() {
			t.Fatalf("keys differ: %q vs %q", a.String(), b.String())
		}
	}
}
