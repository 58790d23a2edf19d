// access/evaluator.go
package access

import "github.com/schoolsync/pulse/model"

// Evaluator decides whether a principal satisfies an access rule. It is
// pure: no I/O, no side effects, safe for concurrent use.
type Evaluator struct {
	adminRole string
}

func NewEvaluator(adminRole string) *Evaluator {
	if adminRole == "" {
		adminRole = "admin"
	}
	return &Evaluator{adminRole: adminRole}
}

// Evaluate grants access when:
//  1. the principal holds the administrative role (unconditional bypass), or
//  2. the rule restricts nothing, or
//  3. both the permission check and the role check pass, where an empty
//     list is vacuously true, RequireAll demands every listed item, and
//     the default demands at least one.
func (e *Evaluator) Evaluate(principal model.Principal, rule model.AccessRule) bool {
	if principal.HasRole(e.adminRole) {
		return true
	}
	if rule.Empty() {
		return true
	}
	return checkList(rule.Permissions, rule.RequireAll, principal.HasPermission) &&
		checkList(rule.Roles, rule.RequireAll, principal.HasRole)
}

func checkList(items []string, requireAll bool, has func(string) bool) bool {
	if len(items) == 0 {
		return true
	}
	if requireAll {
		for _, item := range items {
			if !has(item) {
				return false
			}
		}
		return true
	}
	for _, item := range items {
		if has(item) {
			return true
		}
	}
	return false
}
