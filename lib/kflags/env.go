package kflags

import (
	"os"
	"regexp"
	"strings"
)

// Flag is a flag whose value can be changed by an EnvAugmenter.
type Flag interface {
	Name() string
	Set(value string) error
}

// A VarMangler is a function capable of turning a set of strings in the name of a variable.
//
// If the empty string is returned, the variable is not looked up.
type VarMangler func(components ...string) string

// A VarRewriter is just like a VarMangler, but does not merge the strings together,
// and works on an element at a time.
type VarRewriter func(string) string

// JoinRemap returns a VarMangler that joins each element after passing it through
// the specified rewriters.
//
// A nil rewriter is accepted, and performs no operation.
func JoinRemap(separator string, rewriter ...VarRewriter) VarMangler {
	return func(elements ...string) string {
		result := []string{}
		for _, el := range elements {
			for _, r := range rewriter {
				if r == nil {
					continue
				}
				el = r(el)
			}
			result = append(result, el)
		}
		return strings.Join(result, separator)
	}
}

// Regex defining which characters should be replaced with _ by UnderscoreRewrite.
var ToUnderscore = regexp.MustCompile(`[^a-zA-Z0-9]`)

// UnderscoreRewrite replaces all invalid characters (defined by the
// ToUnderscore regexp) with underscores.
func UnderscoreRewrite(el string) string {
	return ToUnderscore.ReplaceAllString(el, "_")
}

var UppercaseRewrite = strings.ToUpper

// The set of remappers used to turn flags into environment variable names.
//
// With a prefix of "sdrand", the flag --sdr-pipe is looked up as SDRAND_SDR_PIPE.
var DefaultEnvRemap = JoinRemap("_", UnderscoreRewrite, UppercaseRewrite)

type EnvAugmenter struct {
	prefix  []string
	mangler VarMangler
	lookup  func(string) (string, bool)
}

type EnvModifier func(e *EnvAugmenter)

type EnvModifiers []EnvModifier

func (ems EnvModifiers) Apply(e *EnvAugmenter) {
	for _, em := range ems {
		em(e)
	}
}

// WithEnvMangler specifies the VarMangler to turn the name of a flag into
// the name of an environment variable.
func WithEnvMangler(m VarMangler) EnvModifier {
	return func(e *EnvAugmenter) {
		e.mangler = m
	}
}

// WithPrefixes prepends the specified prefixes to the looked up environment variables.
func WithPrefixes(prefix ...string) EnvModifier {
	return func(e *EnvAugmenter) {
		e.prefix = prefix
	}
}

// WithLookup replaces os.LookupEnv. Mainly used for testing.
func WithLookup(lookup func(string) (string, bool)) EnvModifier {
	return func(e *EnvAugmenter) {
		e.lookup = lookup
	}
}

// NewEnvAugmenter creates an object capable of looking up environment
// variables to pre-populate flag defaults.
func NewEnvAugmenter(mods ...EnvModifier) *EnvAugmenter {
	er := &EnvAugmenter{mangler: DefaultEnvRemap, lookup: os.LookupEnv}
	EnvModifiers(mods).Apply(er)
	return er
}

// VisitFlag sets the flag from the environment variable named after the
// configured prefixes and the flag name, if defined.
//
// Returns true if the variable was found.
func (er *EnvAugmenter) VisitFlag(fl Flag) (bool, error) {
	env := er.mangler(append(append([]string{}, er.prefix...), fl.Name())...)
	if env == "" {
		return false, nil
	}

	result, found := er.lookup(env)
	if !found {
		return false, nil
	}
	if err := fl.Set(result); err != nil {
		return true, NewUsageErrorf("invalid value %q in environment variable %s: %w", result, env, err)
	}
	return true, nil
}
