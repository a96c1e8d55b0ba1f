package redact

import (
	"reflect"
	"testing"
)

func TestParseTerms(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"secret, hidden, confidential", []string{"secret", "hidden", "confidential"}},
		{"  secret  ", []string{"secret"}},
		{"a,,b, ,c", []string{"a", "b", "c"}},
		{"", nil},
		{" , ,", nil},
		{"two words, other", []string{"two words", "other"}},
		{"dup,dup", []string{"dup", "dup"}},
	}
	for _, c := range cases {
		if got := ParseTerms(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("ParseTerms(%q) = %#v, want %#v", c.in, got, c.want)
		}
	}
}
