// Package jsonpath renders JSONPath selections of event bodies as text.
package jsonpath

import (
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var renderOptions = oj.Options{Sort: true}

// EvalString evaluates path against the JSON document src.
//
// It reports false when src is not JSON or path does not parse. Otherwise a
// single string match is returned as is, nothing, null or "" give "", and any
// other result is rendered as compact JSON (several matches as an array).
func EvalString(src, path string) (string, bool) {
	doc, err := oj.ParseString(src)
	if err != nil {
		return "", false
	}
	expr, err := jp.ParseString(path)
	if err != nil {
		return "", false
	}

	results := expr.Get(doc)
	switch len(results) {
	case 0:
		return "", true
	case 1:
		switch v := results[0].(type) {
		case nil:
			return "", true
		case string:
			return v, true
		default:
			return oj.JSON(v, &renderOptions), true
		}
	default:
		return oj.JSON(results, &renderOptions), true
	}
}
