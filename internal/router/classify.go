// Package router classifies utterances, selects a generation strategy with
// ordered fallback, and applies a bounded time-expiring response cache.
package router

import (
	"regexp"
	"strings"
)

// Class is the intent/complexity class of an utterance.
type Class int

const (
	ClassGeneral Class = iota // medium-complexity default
	ClassGreeting
	ClassWeather
	ClassDocument
	ClassSimple  // short general query
	ClassComplex // long or analytical query
)

func (c Class) String() string {
	switch c {
	case ClassGreeting:
		return "greeting"
	case ClassWeather:
		return "weather"
	case ClassDocument:
		return "document"
	case ClassSimple:
		return "simple"
	case ClassComplex:
		return "complex"
	default:
		return "general"
	}
}

// Rule pairs a predicate with the class it selects. Rules are evaluated in
// order; the first match wins.
type Rule struct {
	Name  string
	Match func(text string) bool
	Class Class
}

var (
	weatherRe  = regexp.MustCompile(`(?i)\b(weather|temperature|forecast|raining|sunny|humid)\b`)
	documentRe = regexp.MustCompile(`(?i)(analyze|summarize|extract|tell.*about.*document|what.*document|document.*about|pdf|uploaded file)`)
	greetingRe = regexp.MustCompile(`(?i)^(hi|hey|hello|what's up|how are you|good morning|good evening|who are you|what is your name|my name is)`)
	analysisRe = regexp.MustCompile(`(?i)(explain|compare|analyze|why|how does|detail)`)
	complexRe  = regexp.MustCompile(`(?i)(explain.*detail|compare|analyze|what.*difference|step.*step|detailed|comprehensive|thorough|tell me about|describe|what is|how does|code|program|algorithm|implement)`)
)

// DefaultRules returns the standard ordered rule list.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "weather", Class: ClassWeather, Match: func(t string) bool {
			return weatherRe.MatchString(t)
		}},
		{Name: "document", Class: ClassDocument, Match: func(t string) bool {
			return documentRe.MatchString(t)
		}},
		{Name: "greeting", Class: ClassGreeting, Match: func(t string) bool {
			return greetingRe.MatchString(strings.TrimSpace(t))
		}},
		{Name: "short-general", Class: ClassSimple, Match: func(t string) bool {
			return len(t) < 50 && !analysisRe.MatchString(t)
		}},
		{Name: "long-general", Class: ClassComplex, Match: func(t string) bool {
			return len(t) > 100 || complexRe.MatchString(t)
		}},
	}
}

// Classify evaluates rules in order, first match wins. Unmatched text is
// ClassGeneral.
func Classify(rules []Rule, text string) Class {
	for _, r := range rules {
		if r.Match(text) {
			return r.Class
		}
	}
	return ClassGeneral
}
