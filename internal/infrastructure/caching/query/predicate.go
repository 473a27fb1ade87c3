package query

import (
	"fmt"
	"strings"
)

// Op identifies a supported query operator
type Op string

const (
	OpLT        Op = "$lt"
	OpLTE       Op = "$lte"
	OpGT        Op = "$gt"
	OpGTE       Op = "$gte"
	OpNE        Op = "$ne"
	OpIn        Op = "$in"
	OpNin       Op = "$nin"
	OpRegex     Op = "$regex"
	OpExists    Op = "$exists"
	OpSize      Op = "$size"
	OpElemMatch Op = "$elemMatch"
)

var supportedOps = map[Op]bool{
	OpLT: true, OpLTE: true, OpGT: true, OpGTE: true, OpNE: true,
	OpIn: true, OpNin: true, OpRegex: true, OpExists: true,
	OpSize: true, OpElemMatch: true,
}

// OpClause is one operator applied to a field
type OpClause struct {
	Op    Op
	Value any
}

// Condition constrains a single field: either a plain equality value or a
// conjunction of operator clauses, never both.
type Condition struct {
	Field  string
	Equals any
	Ops    []OpClause
	IsOps  bool
}

// Predicate is the parsed form of a query document: an implicit conjunction
// of per-field conditions.
type Predicate struct {
	Conds []Condition
}

// Parse converts a query document into a Predicate. A sub-object mixing
// operator keys and plain keys is a usage error, as is any unsupported
// operator; both are rejected here rather than silently matching at query
// time.
func Parse(q map[string]any) (*Predicate, error) {
	p := &Predicate{Conds: make([]Condition, 0, len(q))}

	for field, value := range q {
		sub, isObject := value.(map[string]any)
		if !isObject {
			p.Conds = append(p.Conds, Condition{Field: field, Equals: value})
			continue
		}

		opKeys, plainKeys := 0, 0
		for k := range sub {
			if strings.HasPrefix(k, "$") {
				opKeys++
			} else {
				plainKeys++
			}
		}

		switch {
		case opKeys == 0:
			// Structural equality against the whole object
			p.Conds = append(p.Conds, Condition{Field: field, Equals: value})
		case plainKeys > 0:
			return nil, fmt.Errorf("field %q mixes operator and plain keys in one predicate object", field)
		default:
			cond := Condition{Field: field, IsOps: true, Ops: make([]OpClause, 0, len(sub))}
			for k, v := range sub {
				op := Op(k)
				if !supportedOps[op] {
					return nil, fmt.Errorf("unsupported query operator %q on field %q", k, field)
				}
				if op == OpElemMatch {
					subQuery, ok := v.(map[string]any)
					if !ok {
						return nil, fmt.Errorf("$elemMatch on field %q requires an object", field)
					}
					inner, err := Parse(subQuery)
					if err != nil {
						return nil, err
					}
					cond.Ops = append(cond.Ops, OpClause{Op: op, Value: inner})
					continue
				}
				cond.Ops = append(cond.Ops, OpClause{Op: op, Value: v})
			}
			p.Conds = append(p.Conds, cond)
		}
	}

	return p, nil
}

// Fields returns the constrained field names in parse order
func (p *Predicate) Fields() []string {
	fields := make([]string, len(p.Conds))
	for i, c := range p.Conds {
		fields[i] = c.Field
	}
	return fields
}
