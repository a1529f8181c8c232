package token

import "testing"

func kinds(toks []Token) []Kind {
	ks := make([]Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestScanTokensOperators(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Kind
	}{
		{"assign", "a = 1", []Kind{Name, Assign, Number, End}},
		{"eq chain", "a == b != c === d !== e", []Kind{
			Name, Eq, Name, NotEq, Name, StrictEq, Name, StrictNotEq, Name, End,
		}},
		{"inc dec", "++a\n--b", []Kind{Inc, Name, Cr, Dec, Name, End}},
		{"bitwise", "a & b | c ^ d", []Kind{Name, BAnd, Name, BOr, Name, BXor, Name, End}},
		{"logical", "a && b || !c", []Kind{Name, LAnd, Name, LOr, Not, Name, End}},
		{"comment skipped", "a // trailing comment\nb", []Kind{Name, Cr, Name, End}},
		{"keywords", "if a while b else break return typeof sizeof keysof nil true false", []Kind{
			If, Name, While, Name, Else, Break, Return, Typeof, Sizeof, Keysof, Nil, True, False, End,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(NewScanner(tt.input).ScanTokens())
			if len(got) != len(tt.want) {
				t.Fatalf("%s: got %v, want %v", tt.name, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("%s: token %d: got %s, want %s (full: %v)", tt.name, i, got[i], tt.want[i], got)
				}
			}
		})
	}
}

func TestScanTokensOffsets(t *testing.T) {
	toks := NewScanner("ab = 12").ScanTokens()
	if toks[0].Offset != 0 || toks[0].Length != 2 || toks[0].Text != "ab" {
		t.Fatalf("unexpected name token: %+v", toks[0])
	}
	if toks[1].Offset != 3 || toks[1].Text != "=" {
		t.Fatalf("unexpected assign token: %+v", toks[1])
	}
	if toks[2].Offset != 5 || toks[2].Text != "12" {
		t.Fatalf("unexpected number token: %+v", toks[2])
	}
}

func TestScanTokensStringLexeme(t *testing.T) {
	toks := NewScanner(`x = "hi there"`).ScanTokens()
	str := toks[2]
	if str.Kind != String || str.Text != "hi there" {
		t.Fatalf("unexpected string token: %+v", str)
	}
}

func TestStreamMarkReset(t *testing.T) {
	s := NewStream(NewScanner("a + b").ScanTokens())
	mark := s.Mark()
	first := s.Advance()
	if first.Kind != Name {
		t.Fatalf("expected Name, got %s", first.Kind)
	}
	s.Advance() // '+'
	s.Reset(mark)
	if s.Peek().Kind != Name {
		t.Fatalf("reset did not rewind stream: got %s", s.Peek().Kind)
	}
	if s.Offset(mark) != 0 {
		t.Fatalf("expected savepoint offset 0, got %d", s.Offset(mark))
	}
}
