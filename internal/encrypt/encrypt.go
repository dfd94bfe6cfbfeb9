// Package encrypt implements the compiler's second pass: it walks the
// already-compiled rules tree, extracting every `.encrypt` annotation into
// an isomorphic parallel tree (the "firecrypt" document) that retains only
// the path down to each annotated node, and strips `.encrypt` out of the
// rules tree it was found in.
package encrypt

// Extract walks rules depth-first, removing every ".encrypt" entry it
// finds and mirroring the path to it (plus the annotation itself) into a
// second tree. It returns nil if no node in rules carries an annotation.
func Extract(rules map[string]interface{}) map[string]interface{} {
	out, found := extractNode(rules)
	if !found {
		return nil
	}
	return out
}

func extractNode(node map[string]interface{}) (map[string]interface{}, bool) {
	var out map[string]interface{}
	found := false

	if enc, ok := node[".encrypt"]; ok {
		delete(node, ".encrypt")
		out = map[string]interface{}{".encrypt": enc}
		found = true
	}

	for key, val := range node {
		child, ok := val.(map[string]interface{})
		if !ok {
			continue
		}
		childOut, childFound := extractNode(child)
		if childFound {
			if out == nil {
				out = map[string]interface{}{}
			}
			out[key] = childOut
			found = true
		}
	}

	return out, found
}
