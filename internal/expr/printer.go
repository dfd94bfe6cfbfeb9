package expr

import (
	"fmt"
	"strings"
)

// quoteSingle renders a string literal the way the realtime-database rules
// format expects: single-quoted (e.g. oneOf('a','b') -> ... == 'a' ||
// ... == 'b').
func quoteSingle(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString("\\'")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// Print serializes n back to source text: canonical infix notation, no
// trailing semicolon, and any newline embedded in the output is collapsed
// to a single space.
func Print(n *Node) string {
	var b strings.Builder
	printNode(&b, n, 0)
	return collapseNewlines(b.String())
}

func collapseNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// precedence mirrors lbp in parser.go; used to decide whether a child needs
// parens to round-trip with minimal bracketing.
func precedence(n *Node) int {
	if n == nil {
		return 99
	}
	switch n.Kind {
	case KindSequence:
		return 1
	case KindConditional:
		return 2
	case KindLogical, KindBinary:
		return lbp(opToken(n.Op))
	case KindUnary:
		return 9
	default:
		return 10
	}
}

func opToken(op string) TokenType {
	switch op {
	case "||":
		return OR
	case "&&":
		return AND
	case "==":
		return EQ
	case "!=":
		return NEQ
	case "<":
		return LT
	case "<=":
		return LTE
	case ">":
		return GT
	case ">=":
		return GTE
	case "+":
		return PLUS
	case "-":
		return MINUS
	case "*":
		return STAR
	case "/":
		return SLASH
	case "%":
		return PERCENT
	}
	return ILLEGAL
}

func printNode(b *strings.Builder, n *Node, parentPrec int) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindLiteral:
		printLiteral(b, n)
	case KindIdentifier:
		b.WriteString(n.Name)
	case KindMember:
		printChild(b, n.Object, 10)
		if n.Computed {
			b.WriteString("[")
			printNode(b, n.Index, 0)
			b.WriteString("]")
		} else {
			b.WriteString(".")
			b.WriteString(n.Property.Name)
		}
	case KindCall:
		printChild(b, n.Callee, 10)
		b.WriteString("(")
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			printNode(b, a, 2)
		}
		b.WriteString(")")
	case KindUnary:
		b.WriteString(n.Op)
		printChild(b, n.Arg, 9)
	case KindBinary, KindLogical:
		prec := precedence(n)
		needParen := prec < parentPrec
		if needParen {
			b.WriteString("(")
		}
		printChild(b, n.Left, prec)
		b.WriteString(" ")
		b.WriteString(n.Op)
		b.WriteString(" ")
		printChild(b, n.Right, prec+1)
		if needParen {
			b.WriteString(")")
		}
	case KindConditional:
		prec := precedence(n)
		needParen := prec < parentPrec
		if needParen {
			b.WriteString("(")
		}
		printChild(b, n.Test, prec+1)
		b.WriteString(" ? ")
		printNode(b, n.Cons, 0)
		b.WriteString(" : ")
		printNode(b, n.Alt, prec)
		if needParen {
			b.WriteString(")")
		}
	case KindSequence:
		for i, it := range n.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			printNode(b, it, 2)
		}
	}
}

func printChild(b *strings.Builder, n *Node, minPrec int) {
	if n == nil {
		return
	}
	childPrec := precedence(n)
	if childPrec < minPrec {
		b.WriteString("(")
		printNode(b, n, 0)
		b.WriteString(")")
		return
	}
	printNode(b, n, minPrec)
}

func printLiteral(b *strings.Builder, n *Node) {
	switch n.LitType {
	case LitString:
		b.WriteString(quoteSingle(n.Str))
	case LitNumber:
		if n.Num == float64(int64(n.Num)) {
			fmt.Fprintf(b, "%d", int64(n.Num))
		} else {
			fmt.Fprintf(b, "%g", n.Num)
		}
	case LitBool:
		if n.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case LitNull:
		b.WriteString("null")
	}
}
