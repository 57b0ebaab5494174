package wallet

import (
	"errors"
	"reflect"
	"testing"
)

func TestParsePathInvalid(t *testing.T) {
	for _, p := range []string{
		"",
		"42",
		"n/0'/0",
		"4/m/5",
		"m//3/0'",
		"m/0h/0x",
		"m/2147483648",
		"m/-1",
		"m/1''",
	} {
		if _, err := ParsePath(p); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("ParsePath(%q): expected ErrInvalidPath, got %v", p, err)
		}
	}
}

func TestParsePathValid(t *testing.T) {
	h := HardenedOffset
	cases := []struct {
		path string
		want []uint32
	}{
		{"m", []uint32{}},
		{"M", []uint32{}},
		{"m'", []uint32{}},
		{"m/", []uint32{}},
		{"m/0'", []uint32{h}},
		{"m/0'/1", []uint32{h, 1}},
		{"m/0'/1/2'", []uint32{h, 1, 2 + h}},
		{"m/0'/1/2'/2", []uint32{h, 1, 2 + h, 2}},
		{"m/0'/1/2'/2/1000000000", []uint32{h, 1, 2 + h, 2, 1000000000}},
		{"m/0'/50/3'/5/545456", []uint32{h, 50, 3 + h, 5, 545456}},
		{"m/2147483647'", []uint32{2147483647 + h}},
		{"m/42'/0'/0'/1/0", []uint32{42 + h, h, h, 1, 0}},
	}
	for _, c := range cases {
		got, err := ParsePath(c.path)
		if err != nil {
			t.Fatalf("ParsePath(%q): %v", c.path, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("ParsePath(%q): got %v want %v", c.path, got, c.want)
		}
	}
}
