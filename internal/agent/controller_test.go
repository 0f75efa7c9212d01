package agent

import "testing"

func TestPortOfParsesListenAddr(t *testing.T) {
	cases := map[string]int{
		"0.0.0.0:9993": 9993,
		"127.0.0.1:1":  1,
		"[::]:9993":    9993,
		"not-an-addr":  0,
	}
	for addr, want := range cases {
		if got := portOf(addr); got != want {
			t.Errorf("portOf(%q) = %d, want %d", addr, got, want)
		}
	}
}
