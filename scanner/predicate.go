package scanner

import (
	"fmt"
	"strings"
)

// Kind identifies which of the 15 predicate variants a Predicate carries.
type Kind int

const (
	Exact Kind = iota
	GreaterOrEqualThan
	LessOrEqualThan
	Between
	Increased
	Decreased
	Unchanged
	Changed
	IncreasedBy
	IncreasedAtLeast
	IncreasedAtMost
	DecreasedBy
	DecreasedAtLeast
	DecreasedAtMost
	Unknown
)

// Predicate is one of the 15 match rules, carrying the Value(s) used both as
// parameter and as type tag.
type Predicate struct {
	kind Kind
	a, b Value // b is only meaningful for Between
}

// TypeTag returns the tag of the predicate's parameter; the engine uses it to
// pick the window width for a scan. Unknown's parameter is a dummy Value that
// exists solely to supply this tag.
func (p Predicate) TypeTag() Tag { return p.a.tag }

// Kind returns which of the 15 variants p is.
func (p Predicate) Kind() Kind { return p.kind }

func newStateless(kind Kind, v Value) Predicate   { return Predicate{kind: kind, a: v} }
func newStateful(kind Kind, tag Tag) Predicate    { return Predicate{kind: kind, a: DefaultFor(tag)} }
func newDelta(kind Kind, delta Value) Predicate   { return Predicate{kind: kind, a: delta} }

// MakeExact, MakeGreaterOrEqualThan, ... are the constructors used by callers
// that already hold a Value (ParsePredicate's colon-less value shorthand, which
// the REPL's write path relies on, builds its predicate with MakeExact).
func MakeExact(v Value) Predicate              { return newStateless(Exact, v) }
func MakeGreaterOrEqualThan(v Value) Predicate { return newStateless(GreaterOrEqualThan, v) }
func MakeLessOrEqualThan(v Value) Predicate    { return newStateless(LessOrEqualThan, v) }
func MakeBetween(lo, hi Value) (Predicate, error) {
	if lo.tag != hi.tag {
		return Predicate{}, &ErrTypeMismatch{lo.tag, hi.tag}
	}
	return Predicate{kind: Between, a: lo, b: hi}, nil
}
func MakeIncreased(tag Tag) Predicate        { return newStateful(Increased, tag) }
func MakeDecreased(tag Tag) Predicate        { return newStateful(Decreased, tag) }
func MakeUnchanged(tag Tag) Predicate        { return newStateful(Unchanged, tag) }
func MakeChanged(tag Tag) Predicate          { return newStateful(Changed, tag) }
func MakeUnknown(tag Tag) Predicate          { return newStateful(Unknown, tag) }
func MakeIncreasedBy(d Value) Predicate      { return newDelta(IncreasedBy, d) }
func MakeIncreasedAtLeast(d Value) Predicate { return newDelta(IncreasedAtLeast, d) }
func MakeIncreasedAtMost(d Value) Predicate  { return newDelta(IncreasedAtMost, d) }
func MakeDecreasedBy(d Value) Predicate      { return newDelta(DecreasedBy, d) }
func MakeDecreasedAtLeast(d Value) Predicate { return newDelta(DecreasedAtLeast, d) }
func MakeDecreasedAtMost(d Value) Predicate  { return newDelta(DecreasedAtMost, d) }

// Matches evaluates p against a (current, previous) reading. Both operands
// must share p's tag, otherwise it fails with ErrTypeMismatch.
func (p Predicate) Matches(current, previous Value) (bool, error) {
	switch p.kind {
	case Exact:
		return Equal(current, p.a)
	case GreaterOrEqualThan:
		c, ok, err := Compare(current, p.a)
		return ok && c >= 0, err
	case LessOrEqualThan:
		c, ok, err := Compare(current, p.a)
		return ok && c <= 0, err
	case Between:
		clo, ok1, err := Compare(current, p.a)
		if err != nil {
			return false, err
		}
		chi, ok2, err := Compare(current, p.b)
		if err != nil {
			return false, err
		}
		return ok1 && ok2 && clo >= 0 && chi <= 0, nil
	case Increased:
		c, ok, err := Compare(current, previous)
		return ok && c > 0, err
	case Decreased:
		c, ok, err := Compare(current, previous)
		return ok && c < 0, err
	case Unchanged:
		return Equal(current, previous)
	case Changed:
		eq, err := Equal(current, previous)
		return !eq, err
	case IncreasedBy:
		want, err := Add(previous, p.a)
		if err != nil {
			return false, err
		}
		return Equal(current, want)
	case IncreasedAtLeast:
		want, err := Add(previous, p.a)
		if err != nil {
			return false, err
		}
		c, ok, err := Compare(current, want)
		return ok && c >= 0, err
	case IncreasedAtMost:
		want, err := Add(previous, p.a)
		if err != nil {
			return false, err
		}
		c, ok, err := Compare(current, want)
		return ok && c <= 0, err
	case DecreasedBy:
		want, err := Sub(previous, p.a)
		if err != nil {
			return false, err
		}
		return Equal(current, want)
	case DecreasedAtLeast:
		want, err := Sub(previous, p.a)
		if err != nil {
			return false, err
		}
		c, ok, err := Compare(current, want)
		return ok && c <= 0, err
	case DecreasedAtMost:
		want, err := Sub(previous, p.a)
		if err != nil {
			return false, err
		}
		c, ok, err := Compare(current, want)
		return ok && c >= 0, err
	case Unknown:
		return true, nil
	default:
		return false, fmt.Errorf("unreachable predicate kind")
	}
}

// stateful ops carry no mandatory value; their argument, if present, only
// supplies the type tag (e.g. "?:0_i16" seeds Unknown with tag i16). A bare
// "u" or "?" with no colon at all is accepted and defaults to tag i32,
// matching Parse's own default-tag rule.
var tagOnlyOps = map[string]func(Tag) Predicate{
	"+": MakeIncreased,
	"-": MakeDecreased,
	"u": MakeUnchanged,
	"c": MakeChanged,
	"?": MakeUnknown,
}

// ParsePredicate parses the grammar "<op>:<arg0>[,<arg1>]". The tag-only ops
// (+, -, u, c, ?) additionally accept a bare "<op>" with no colon at all. Any
// other colon-less text that parses as a plain value (e.g. "7_i32",
// "0xFF_i16") is taken as shorthand for "=:<text>", since write's grammar
// lets a caller name the exact value to poke without spelling out the "="
// operator.
func ParsePredicate(text string) (Predicate, error) {
	op, rest, hasColon := strings.Cut(text, ":")
	if !hasColon {
		if make, ok := tagOnlyOps[op]; ok {
			return make(I32), nil
		}
		if v, err := Parse(text); err == nil {
			return MakeExact(v), nil
		}
		return Predicate{}, fmt.Errorf("malformed pattern %q: missing ':'", text)
	}
	args := strings.Split(rest, ",")
	arg := func(i int) (string, error) {
		if i >= len(args) || args[i] == "" {
			return "", fmt.Errorf("malformed pattern %q: missing argument %d", text, i)
		}
		return args[i], nil
	}
	switch op {
	case "=":
		a0, err := arg(0)
		if err != nil {
			return Predicate{}, err
		}
		v, err := Parse(a0)
		if err != nil {
			return Predicate{}, err
		}
		return MakeExact(v), nil
	case ">=":
		a0, err := arg(0)
		if err != nil {
			return Predicate{}, err
		}
		v, err := Parse(a0)
		if err != nil {
			return Predicate{}, err
		}
		return MakeGreaterOrEqualThan(v), nil
	case "<=":
		a0, err := arg(0)
		if err != nil {
			return Predicate{}, err
		}
		v, err := Parse(a0)
		if err != nil {
			return Predicate{}, err
		}
		return MakeLessOrEqualThan(v), nil
	case "b":
		a0, err := arg(0)
		if err != nil {
			return Predicate{}, err
		}
		a1, err := arg(1)
		if err != nil {
			return Predicate{}, err
		}
		lo, err := Parse(a0)
		if err != nil {
			return Predicate{}, err
		}
		hi, err := Parse(a1)
		if err != nil {
			return Predicate{}, err
		}
		return MakeBetween(lo, hi)
	case "+":
		return statefulFromArg(text, args, MakeIncreased)
	case "-":
		return statefulFromArg(text, args, MakeDecreased)
	case "u":
		return statefulFromArg(text, args, MakeUnchanged)
	case "c":
		return statefulFromArg(text, args, MakeChanged)
	case "?":
		return statefulFromArg(text, args, MakeUnknown)
	case "+=":
		return deltaFromArg(text, args, MakeIncreasedBy)
	case "+>=":
		return deltaFromArg(text, args, MakeIncreasedAtLeast)
	case "+<=":
		return deltaFromArg(text, args, MakeIncreasedAtMost)
	case "-=":
		return deltaFromArg(text, args, MakeDecreasedBy)
	case "->=":
		return deltaFromArg(text, args, MakeDecreasedAtLeast)
	case "-<=":
		return deltaFromArg(text, args, MakeDecreasedAtMost)
	default:
		return Predicate{}, fmt.Errorf("malformed pattern %q: unrecognised operator %q", text, op)
	}
}

func statefulFromArg(text string, args []string, make func(Tag) Predicate) (Predicate, error) {
	if len(args) == 0 || args[0] == "" {
		return Predicate{}, fmt.Errorf("malformed pattern %q: missing argument 0", text)
	}
	v, err := Parse(args[0])
	if err != nil {
		return Predicate{}, err
	}
	return make(v.Tag()), nil
}

func deltaFromArg(text string, args []string, make func(Value) Predicate) (Predicate, error) {
	if len(args) == 0 || args[0] == "" {
		return Predicate{}, fmt.Errorf("malformed pattern %q: missing argument 0", text)
	}
	v, err := Parse(args[0])
	if err != nil {
		return Predicate{}, err
	}
	return make(v), nil
}
