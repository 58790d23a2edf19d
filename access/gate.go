// access/gate.go
package access

import "github.com/schoolsync/pulse/model"

// Gated is the display-gating form of the evaluator: it yields value when
// the principal passes the rule and fallback otherwise. It shares the exact
// evaluation logic with Evaluator.Evaluate.
func Gated[T any](e *Evaluator, principal model.Principal, rule model.AccessRule, value, fallback T) T {
	if e.Evaluate(principal, rule) {
		return value
	}
	return fallback
}
