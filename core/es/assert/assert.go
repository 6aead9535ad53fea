// Package assert builds named conditions that aggregate commands check
// before recording an event.
package assert

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

var ErrFailed = errors.New("assertion failed")

type Func func() error
type CondFunc func() bool

type Cond interface {
	String() string
	Eval() bool
	Check() error
}

// Failure is returned by Check; Rule names the first failing condition.
type Failure struct {
	Rule string
}

func (f *Failure) Error() string        { return fmt.Sprintf("%s: %s", ErrFailed, f.Rule) }
func (f *Failure) Is(target error) bool { return target == ErrFailed }

type cond struct {
	name  string
	cond  CondFunc
	check func() error
}

func (c *cond) Check() error   { return c.check() }
func (c *cond) String() string { return c.name }
func (c *cond) Eval() bool     { return c.cond() }

func newCond(name string, condFn CondFunc) *cond {
	return &cond{name: name, cond: condFn, check: func() error {
		if !condFn() {
			return &Failure{Rule: name}
		}
		return nil
	}}
}

func Not(c Cond) Cond {
	return newCond(fmt.Sprintf("[not](%s)", c.String()), func() bool { return !c.Eval() })
}
func True(v bool, name string) Cond  { return newCond(name, func() bool { return v }) }
func False(v bool, name string) Cond { return newCond(name, func() bool { return !v }) }

// NotBlank holds when s has at least one non-space character.
func NotBlank(s, field string) Cond {
	return newCond(field+" must not be blank", func() bool { return strings.TrimSpace(s) != "" })
}

// MaxLen counts runes, not bytes.
func MaxLen(s string, n int, field string) Cond {
	return newCond(fmt.Sprintf("%s must be at most %d characters", field, n), func() bool {
		return utf8.RuneCountInString(s) <= n
	})
}

// Slug holds for lower case ascii words joined by single dashes.
func Slug(s, field string) Cond {
	return newCond(field+" must be a slug", func() bool { return isSlug(s) })
}

// Email holds for a bare address without display name.
func Email(s, field string) Cond {
	return newCond(field+" must be an email address", func() bool {
		a, err := mail.ParseAddress(s)
		return err == nil && a.Address == s
	})
}

func NonNegative[N ~int | ~int64](v N, field string) Cond {
	return newCond(field+" must not be negative", func() bool { return v >= 0 })
}

func OneOf[T comparable](v T, field string, allowed ...T) Cond {
	return newCond(fmt.Sprintf("%s must be one of %v", field, allowed), func() bool {
		for _, a := range allowed {
			if a == v {
				return true
			}
		}
		return false
	})
}

func All(cs ...Cond) Cond {
	all := newCond("all", func() bool {
		for _, c := range cs {
			if !c.Eval() {
				return false
			}
		}
		return true
	})

	all.check = func() error {
		for _, c := range cs {
			if err := c.Check(); err != nil {
				return err
			}
		}
		return nil
	}

	return all
}

func Assert(cond ...Cond) Func {
	return All(cond...).Check
}

func isSlug(s string) bool {
	if s == "" || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	prevDash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevDash = false
		case c == '-':
			if prevDash {
				return false
			}
			prevDash = true
		default:
			return false
		}
	}
	return true
}
