package encrypt

import "testing"

func TestExtractReturnsNilWhenNoAnnotations(t *testing.T) {
	rules := map[string]interface{}{
		"name": map[string]interface{}{".validate": "newData.isString()"},
	}
	if got := Extract(rules); got != nil {
		t.Errorf("Extract() = %v, want nil", got)
	}
}

func TestExtractTopLevelAnnotation(t *testing.T) {
	rules := map[string]interface{}{
		"ssn": map[string]interface{}{
			".validate": "newData.isString()",
			".encrypt":  map[string]interface{}{"value": "ssn"},
		},
	}
	out := Extract(rules)
	if out == nil {
		t.Fatal("Extract() = nil, want a firecrypt tree")
	}
	ssn, ok := out["ssn"].(map[string]interface{})
	if !ok {
		t.Fatal("expected ssn in the firecrypt tree")
	}
	enc, ok := ssn[".encrypt"].(map[string]interface{})
	if !ok || enc["value"] != "ssn" {
		t.Errorf("ssn[.encrypt] = %v, want {value: ssn}", ssn[".encrypt"])
	}

	rulesSSN := rules["ssn"].(map[string]interface{})
	if _, exists := rulesSSN[".encrypt"]; exists {
		t.Error(".encrypt was not stripped from the original rules tree")
	}
	if rulesSSN[".validate"] != "newData.isString()" {
		t.Error("unrelated keys should survive stripping")
	}
}

func TestExtractOnlyMirrorsAnnotatedPaths(t *testing.T) {
	rules := map[string]interface{}{
		"users": map[string]interface{}{
			"$uid": map[string]interface{}{
				"name": map[string]interface{}{".validate": "newData.isString()"},
				"ssn": map[string]interface{}{
					".validate": "newData.isString()",
					".encrypt":  map[string]interface{}{"value": "#"},
				},
			},
		},
	}
	out := Extract(rules)
	if out == nil {
		t.Fatal("Extract() = nil, want a firecrypt tree")
	}
	users := out["users"].(map[string]interface{})
	uid := users["$uid"].(map[string]interface{})
	if _, exists := uid["name"]; exists {
		t.Error("did not expect an unannotated sibling to appear in the firecrypt tree")
	}
	ssn, ok := uid["ssn"].(map[string]interface{})
	if !ok {
		t.Fatal("expected ssn in the firecrypt tree")
	}
	if _, ok := ssn[".encrypt"].(map[string]interface{}); !ok {
		t.Error("expected .encrypt to be mirrored on ssn")
	}
}

func TestExtractAtDeepPathPreservesIntermediateStructure(t *testing.T) {
	rules := map[string]interface{}{
		"a": map[string]interface{}{
			"b": map[string]interface{}{
				"c": map[string]interface{}{
					".encrypt": map[string]interface{}{"key": "#"},
				},
			},
		},
	}
	out := Extract(rules)
	a, ok := out["a"].(map[string]interface{})
	if !ok {
		t.Fatal("expected a in the firecrypt tree")
	}
	b, ok := a["b"].(map[string]interface{})
	if !ok {
		t.Fatal("expected a/b in the firecrypt tree")
	}
	c, ok := b["c"].(map[string]interface{})
	if !ok {
		t.Fatal("expected a/b/c in the firecrypt tree")
	}
	if _, ok := c[".encrypt"]; !ok {
		t.Error("expected .encrypt on a/b/c")
	}

	rulesA := rules["a"].(map[string]interface{})
	rulesB := rulesA["b"].(map[string]interface{})
	rulesC := rulesB["c"].(map[string]interface{})
	if _, exists := rulesC[".encrypt"]; exists {
		t.Error(".encrypt was not stripped from the deep rules node")
	}
}
