package docnode

import "testing"

func TestDecodePreservesMappingKeyOrder(t *testing.T) {
	doc, err := Decode([]byte(`
root:
  zebra: {".value": "string"}
  apple: {".value": "string"}
  mango: {".value": "string"}
`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(doc.Root.Pairs) != 3 {
		t.Fatalf("got %d pairs, want 3", len(doc.Root.Pairs))
	}
	want := []string{"zebra", "apple", "mango"}
	for i, w := range want {
		if doc.Root.Pairs[i].Key != w {
			t.Errorf("pair[%d].Key = %q, want %q", i, doc.Root.Pairs[i].Key, w)
		}
	}
}

func TestDecodeScalarShorthand(t *testing.T) {
	doc, err := Decode([]byte(`
root:
  name: required string
`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	child, ok := doc.Root.Get("name")
	if !ok {
		t.Fatal("expected a 'name' child")
	}
	if !child.IsScalar || child.Scalar != "required string" {
		t.Errorf("child = %+v, want scalar %q", child, "required string")
	}
}

func TestDecodeFunctionsInOrder(t *testing.T) {
	doc, err := Decode([]byte(`
functions:
  - isOwner(uid): "auth.uid == uid"
  - isAdmin(): "auth.token.admin == true"
root:
  ".value": "any"
`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(doc.Functions) != 2 {
		t.Fatalf("got %d functions, want 2", len(doc.Functions))
	}
	if doc.Functions[0].Signature != "isOwner(uid)" || doc.Functions[0].Body != "auth.uid == uid" {
		t.Errorf("functions[0] = %+v", doc.Functions[0])
	}
	if doc.Functions[1].Signature != "isAdmin()" {
		t.Errorf("functions[1] = %+v", doc.Functions[1])
	}
}

func TestDecodeResolvesAnchorsAndAliases(t *testing.T) {
	doc, err := Decode([]byte(`
root:
  a: &shared {".value": "required string"}
  b: *shared
`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	a, _ := doc.Root.Get("a")
	b, _ := doc.Root.Get("b")
	aStr, _ := a.AsString()
	bStr, _ := b.AsString()
	if aStr != bStr || aStr != "required string" {
		t.Errorf("a = %q, b = %q, want both %q", aStr, bStr, "required string")
	}
}

func TestDecodeRejectsSequenceInRuleTree(t *testing.T) {
	_, err := Decode([]byte(`
root:
  foo:
    - a
    - b
`))
	if err == nil {
		t.Fatal("expected an error for a sequence inside the rule tree")
	}
}

func TestDecodeRequiresRootKey(t *testing.T) {
	_, err := Decode([]byte(`
functions:
  - f(): "true"
`))
	if err == nil {
		t.Fatal("expected an error when 'root' is missing")
	}
}

func TestDecodeRejectsEmptyDocument(t *testing.T) {
	if _, err := Decode([]byte("")); err == nil {
		t.Fatal("expected an error for an empty document")
	}
}

func TestAsStringFromMappingValueEntry(t *testing.T) {
	doc, err := Decode([]byte(`
root:
  child:
    ".value": "indexed string"
    ".read": "true"
`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	child, _ := doc.Root.Get("child")
	s, ok := child.AsString()
	if !ok || s != "indexed string" {
		t.Errorf("AsString() = (%q, %v), want (%q, true)", s, ok, "indexed string")
	}
}
