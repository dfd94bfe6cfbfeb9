// Package expr implements a JavaScript-subset expression parser, AST and
// serializer used by the rule compiler to rewrite author-facing expressions
// into the verbose snapshot-calling form the target database engine expects.
package expr

// Kind tags the variant of a Node.
type Kind int

const (
	KindLiteral Kind = iota
	KindIdentifier
	KindMember
	KindCall
	KindUnary
	KindBinary
	KindLogical
	KindConditional
	KindSequence
)

// LiteralType narrows the Go type carried by a KindLiteral node.
type LiteralType int

const (
	LitString LiteralType = iota
	LitNumber
	LitBool
	LitNull
)

// Node is a tagged-union AST node for the expression subset. Only the
// fields relevant to Kind are populated; the rest are zero.
//
// Snapshot is a transient attribute set by the transformer: it marks a node
// whose runtime value is a database snapshot handle rather than a plain
// value. It is never part of the persisted/serialized form.
type Node struct {
	Kind Kind

	// KindLiteral
	LitType LiteralType
	Str     string
	Num     float64
	Bool    bool

	// KindIdentifier
	Name string

	// KindMember: Object[.Property] or Object[Index] when Computed.
	Object   *Node
	Property *Node // identifier name wrapped in a KindIdentifier when dotted
	Index    *Node // arbitrary expression when Computed
	Computed bool

	// KindCall
	Callee *Node
	Args   []*Node

	// KindUnary: Op applied to Arg (prefix only: !, -, +)
	// KindBinary / KindLogical: Op applied to Left, Right
	Op    string
	Arg   *Node
	Left  *Node
	Right *Node

	// KindConditional: Test ? Cons : Alt
	Test *Node
	Cons *Node
	Alt  *Node

	// KindSequence
	Items []*Node

	// Snapshot is set by the transformer; see doc comment above.
	Snapshot bool
}

// Clone deep-copies a node so parameter substitution during function
// inlining never aliases subtrees across call sites.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Object = n.Object.Clone()
	c.Property = n.Property.Clone()
	c.Index = n.Index.Clone()
	c.Callee = n.Callee.Clone()
	c.Arg = n.Arg.Clone()
	c.Left = n.Left.Clone()
	c.Right = n.Right.Clone()
	c.Test = n.Test.Clone()
	c.Cons = n.Cons.Clone()
	c.Alt = n.Alt.Clone()
	if n.Args != nil {
		c.Args = make([]*Node, len(n.Args))
		for i, a := range n.Args {
			c.Args[i] = a.Clone()
		}
	}
	if n.Items != nil {
		c.Items = make([]*Node, len(n.Items))
		for i, a := range n.Items {
			c.Items[i] = a.Clone()
		}
	}
	return &c
}

// Ident builds a bare identifier node.
func Ident(name string) *Node { return &Node{Kind: KindIdentifier, Name: name} }

// StringLit builds a string literal node.
func StringLit(s string) *Node { return &Node{Kind: KindLiteral, LitType: LitString, Str: s} }

// Call builds a zero-or-more-argument call node.
func Call(callee *Node, args ...*Node) *Node {
	return &Node{Kind: KindCall, Callee: callee, Args: args}
}

// Dotted builds Object.Name as a non-computed member expression.
func Dotted(object *Node, name string) *Node {
	return &Node{Kind: KindMember, Object: object, Property: Ident(name)}
}

// MethodCall builds Object.Method(args...).
func MethodCall(object *Node, method string, args ...*Node) *Node {
	return Call(Dotted(object, method), args...)
}
