// ABOUTME: Tests for whitespace collapsing and encoding resolution
// ABOUTME: Covers pass-through behaviour when an encoding cannot be opened

package framer

import "testing"

func TestCollapseSpaces(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{in: "a b", want: "a b"},
		{in: "a    b", want: "a b"},
		{in: "total   \nnext", want: "total\nnext"},
		{in: "x \r\ny", want: "x\r\ny"},
		{in: "  lead", want: " lead"},
		{in: "trail   ", want: "trail "},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := CollapseSpaces(tt.in); got != tt.want {
			t.Errorf("CollapseSpaces(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		encoding string
		in       []byte
		want     string
		wantErr  bool
	}{
		{name: "utf8 default", in: []byte("café"), want: "café"},
		{name: "latin1", encoding: "ISO-8859-1", in: []byte{'c', 'a', 'f', 0xe9}, want: "café"},
		{name: "big5", encoding: "big5", in: []byte{0xa4, 0xa4}, want: "中"},
		{name: "cp437 via iana", encoding: "IBM437", in: []byte{0x80, 'a'}, want: "Ça"},
		{name: "unknown", encoding: "no-such-charset", in: []byte("raw  text"), want: "raw text", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n := NewNormalizer(tt.encoding)
			if (n.Err() != nil) != tt.wantErr {
				t.Fatalf("Err() = %v, wantErr %v", n.Err(), tt.wantErr)
			}
			if got := n.Text(tt.in); got != tt.want {
				t.Errorf("Text = %q, want %q", got, tt.want)
			}
		})
	}
}
