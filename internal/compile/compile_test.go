package compile

import (
	"testing"

	"github.com/dbrules/rulesc/internal/docnode"
)

func decode(t *testing.T, src string) *docnode.Document {
	t.Helper()
	doc, err := docnode.Decode([]byte(src))
	if err != nil {
		t.Fatalf("docnode.Decode() error = %v", err)
	}
	return doc
}

func TestCompileEndToEndWithFunctionInlining(t *testing.T) {
	doc := decode(t, `
functions:
  - isOwner(uid): "auth.uid == uid"
root:
  users:
    $uid:
      ".write": "isOwner($uid)"
      name: string
`)
	result, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if result.RunID == "" {
		t.Error("expected a non-empty RunID")
	}
	users := result.Rules["users"].(map[string]interface{})
	uid := users["$uid"].(map[string]interface{})
	want := "auth.uid == $uid.val()"
	if uid[".write"] != want {
		t.Errorf(".write = %v, want %q", uid[".write"], want)
	}
	if result.Firecrypt != nil {
		t.Errorf("Firecrypt = %v, want nil (no .encrypt annotations)", result.Firecrypt)
	}
}

func TestCompileExtractsFirecrypt(t *testing.T) {
	doc := decode(t, `
root:
  ssn: encrypted[ssn] string
`)
	result, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if result.Firecrypt == nil {
		t.Fatal("expected a non-nil Firecrypt tree")
	}
	ssn, ok := result.Firecrypt["ssn"].(map[string]interface{})
	if !ok {
		t.Fatal("expected ssn in the firecrypt tree")
	}
	if _, ok := ssn[".encrypt"]; !ok {
		t.Error("expected .encrypt on ssn in the firecrypt tree")
	}
	rulesSSN := result.Rules["ssn"].(map[string]interface{})
	if _, exists := rulesSSN[".encrypt"]; exists {
		t.Error(".encrypt should have been stripped from the rules tree")
	}
}

func TestCompileRunIDsAreUniquePerRun(t *testing.T) {
	doc := decode(t, `
root:
  ".value": any
`)
	r1, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	r2, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if r1.RunID == r2.RunID {
		t.Error("expected distinct RunIDs across separate compiles")
	}
}

func TestCompileWarnsAboutUnusedFunction(t *testing.T) {
	doc := decode(t, `
functions:
  - isOwner(uid): "auth.uid == uid"
  - neverCalled(): "true"
root:
  ".write": "isOwner(auth.uid)"
  ".value": any
`)
	result, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	found := false
	for _, w := range result.Warnings {
		if w.Path == "/functions/neverCalled" {
			found = true
		}
		if w.Path == "/functions/isOwner" {
			t.Errorf("did not expect a warning about isOwner, which is referenced")
		}
	}
	if !found {
		t.Error("expected a warning about the unused function neverCalled")
	}
}

func TestCompileMutuallyRecursiveFunctionsFail(t *testing.T) {
	doc := decode(t, `
functions:
  - a(x): "b(x)"
  - b(x): "a(x)"
root:
  ".value": any
`)
	_, err := Compile(doc)
	if err == nil {
		t.Fatal("expected an error for mutually recursive function definitions")
	}
}

func TestCompileWrapsFunctionSignatureError(t *testing.T) {
	doc := decode(t, `
functions:
  - "not a valid signature!!": "true"
root:
  ".value": any
`)
	_, err := Compile(doc)
	if err == nil {
		t.Fatal("expected an error for a malformed function signature")
	}
	var ce *CompileError
	if !asCompileError(err, &ce) {
		t.Fatalf("expected a *CompileError, got %T", err)
	}
}

func TestCompileUnknownReferencePropagatesAsCompileError(t *testing.T) {
	doc := decode(t, `
root:
  ".validate": "totallyUnknownName"
`)
	_, err := Compile(doc)
	if err == nil {
		t.Fatal("expected an error for an unresolvable identifier")
	}
	var ce *CompileError
	if !asCompileError(err, &ce) {
		t.Fatalf("expected a *CompileError, got %T", err)
	}
}

func asCompileError(err error, target **CompileError) bool {
	if ce, ok := err.(*CompileError); ok {
		*target = ce
		return true
	}
	return false
}

func TestCompileErrorMessageFallsBackToBareMessage(t *testing.T) {
	err := &CompileError{Message: "boom"}
	if err.Error() != "boom" {
		t.Errorf("Error() = %q, want %q", err.Error(), "boom")
	}
}

func TestCompileErrorMessageIncludesPath(t *testing.T) {
	err := &CompileError{Message: "boom", Path: "/users/$uid/.write"}
	want := "boom (at /users/$uid/.write)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
