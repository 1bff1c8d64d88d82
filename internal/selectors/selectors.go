// Package selectors implements the small set-algebra expression language
// used to name sets of workspaces, leases, and branches by predicates.
//
// Grammar:
//
//	expr      = term { ("|" | "&" | "~") term }      (left-associative)
//	term      = kinded | bare | "(" expr ")"
//	kinded    = kind "(" predicate ")"
//	bare      = predicate
//	kind      = "ws" | "lease" | "branch"
//	predicate = "active" | "stale" | "blocked"
//	          | "ahead" ":" token | "touching" ":" path
//	          | "overlaps" ":" path | "name~" string-literal
//
// Predicate evaluation is delegated to an injected Matcher so the engine
// needs no live repository state. Evaluation cannot fail; all errors are
// parse errors.
package selectors

import (
	"fmt"
	"sort"
)

// Kind represents the type of entity being selected
type Kind string

const (
	KindWorkspace Kind = "ws"
	KindLease     Kind = "lease"
	KindBranch    Kind = "branch"
)

// Kinds lists every selectable kind, in result order
var Kinds = []Kind{KindWorkspace, KindLease, KindBranch}

// Item is one selectable entity
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Match is one element of a selector result set
type Match struct {
	Kind Kind `json:"kind"`
	Item Item `json:"item"`
}

// Universe holds the candidate items per kind
type Universe map[Kind][]Item

// Predicate is a parsed predicate; Arg is empty for bare predicates
type Predicate struct {
	Name string
	Arg  string
}

// Matcher decides whether an item satisfies a predicate
type Matcher func(kind Kind, item Item, pred Predicate) bool

// Expr is a parsed selector expression
type Expr interface {
	eval(u Universe, m Matcher) matchSet
}

type predExpr struct {
	kind Kind // empty means all kinds
	pred Predicate
}

type binExpr struct {
	op    rune // '|', '&', '~'
	left  Expr
	right Expr
}

// Eval evaluates a parsed expression over the universe. The result is
// sorted by kind (ws, lease, branch) then item id.
func Eval(e Expr, u Universe, m Matcher) []Match {
	set := e.eval(u, m)
	out := make([]Match, 0, len(set))
	for _, match := range set {
		out = append(out, match)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return kindRank(out[i].Kind) < kindRank(out[j].Kind)
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	return out
}

func kindRank(k Kind) int {
	for i, kind := range Kinds {
		if kind == k {
			return i
		}
	}
	return len(Kinds)
}

type matchSet map[string]Match

func key(m Match) string {
	return string(m.Kind) + "\x00" + m.Item.ID
}

func (e *predExpr) eval(u Universe, m Matcher) matchSet {
	set := make(matchSet)
	kinds := Kinds
	if e.kind != "" {
		kinds = []Kind{e.kind}
	}
	for _, kind := range kinds {
		for _, item := range u[kind] {
			if m(kind, item, e.pred) {
				match := Match{Kind: kind, Item: item}
				set[key(match)] = match
			}
		}
	}
	return set
}

func (e *binExpr) eval(u Universe, m Matcher) matchSet {
	left := e.left.eval(u, m)
	right := e.right.eval(u, m)
	out := make(matchSet)
	switch e.op {
	case '|':
		for k, v := range left {
			out[k] = v
		}
		for k, v := range right {
			out[k] = v
		}
	case '&':
		for k, v := range left {
			if _, ok := right[k]; ok {
				out[k] = v
			}
		}
	case '~':
		for k, v := range left {
			if _, ok := right[k]; !ok {
				out[k] = v
			}
		}
	}
	return out
}

// ErrorKind classifies parse failures
type ErrorKind string

const (
	ErrUnexpectedToken    ErrorKind = "unexpected token"
	ErrUnterminatedString ErrorKind = "unterminated string"
	ErrTrailingInput      ErrorKind = "trailing input"
)

// ParseError is a selector syntax error
type ParseError struct {
	Kind  ErrorKind
	Pos   int
	Token string
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("selector: %s %q at offset %d", e.Kind, e.Token, e.Pos)
	}
	return fmt.Sprintf("selector: %s at offset %d", e.Kind, e.Pos)
}
