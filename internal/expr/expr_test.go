package expr

import "testing"

func TestParsePrintRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"identifier", "auth", "auth"},
		{"member", "newData.child('x')", "newData.child('x')"},
		{"binary", "1 + 2", "1 + 2"},
		{"logical precedence", "a && b || c", "a && b || c"},
		{"parens preserved when needed", "(a || b) && c", "(a || b) && c"},
		{"ternary", "a ? b : c", "a ? b : c"},
		{"computed index", "data.foo[$bar]", "data.foo[$bar]"},
		{"string escaping", `'it\'s'`, `'it\'s'`},
		{"call with args", "hasChildren(foo, bar)", "hasChildren(foo, bar)"},
		{"method chain", "newData.child('a').child('b').exists()", "newData.child('a').child('b').exists()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.src, err)
			}
			got := Print(n)
			if got != tt.want {
				t.Errorf("Print(Parse(%q)) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestParseRejectsAssignment(t *testing.T) {
	if _, err := Parse("a = b"); err == nil {
		t.Fatal("expected an error for bare assignment, got nil")
	}
}

// The grammar has no array-literal primary expression: [ and ] only appear
// in computed member access (obj[expr]). A bracketed list in argument
// position is a syntax error, not a literal.
func TestParseRejectsArrayLiteral(t *testing.T) {
	if _, err := Parse("hasChildren(['a', 'b'])"); err == nil {
		t.Fatal("expected an error for a bracketed array literal, got nil")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	n, err := Parse("a.b(c, d)")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	c := n.Clone()
	c.Args[0].Name = "mutated"
	if n.Args[0].Name == "mutated" {
		t.Fatal("Clone shared the Args slice with the original node")
	}
}

func TestMinimalParens(t *testing.T) {
	n, err := Parse("a + b + c")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := Print(n); got != "a + b + c" {
		t.Errorf("Print() = %q, want no redundant parens", got)
	}
}
