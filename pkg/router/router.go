// Package router implements the routing decision that assigns each slide
// to a rendering backend.
//
// Routing is a pure function of the slide and the registry contents: the
// same (slide type, chart presence, registry) always yields the same
// backend. Failures are configuration-level and never retried.
package router

import (
	"github.com/mbaylis/slideforge/pkg/backend"
	"github.com/mbaylis/slideforge/pkg/errors"
	"github.com/mbaylis/slideforge/pkg/slide"
)

// defaults is the static type→backend table consulted when neither the
// hint nor the chart rule applies. Text-heavy slides go to the browser
// backend; diagram-shaped slides to the grammar backend.
var defaults = map[slide.Type]backend.ID{
	slide.TypeHook:       backend.Browser,
	slide.TypeMyth:       backend.Browser,
	slide.TypeStat:       backend.Browser,
	slide.TypeTips:       backend.Browser,
	slide.TypeCTA:        backend.Browser,
	slide.TypeData:       backend.Grammar,
	slide.TypeProcess:    backend.Grammar,
	slide.TypeComparison: backend.Grammar,
	slide.TypeChecklist:  backend.Browser,
	slide.TypeQuote:      backend.Browser,
}

// Route picks the backend for a slide. Decision policy, first match wins:
//
//  1. A capable hinted backend.
//  2. The grammar backend for data slides carrying chart data.
//  3. The static type→backend table.
//  4. The static composer, if it declares support for the type.
//
// When nothing matches, Route fails closed with a RoutingError listing
// the backends it considered. There is no silent default.
func Route(s *slide.Content, reg *backend.Registry) (backend.ID, error) {
	var tried []string

	if s.BackendHint != "" {
		hinted := backend.ID(s.BackendHint)
		if reg.Capable(hinted, s.Type) {
			return hinted, nil
		}
		tried = append(tried, string(hinted))
	}

	if s.Type == slide.TypeData && s.HasChartData() {
		if reg.Capable(backend.Grammar, s.Type) {
			return backend.Grammar, nil
		}
		tried = append(tried, string(backend.Grammar))
	}

	if def, ok := defaults[s.Type]; ok {
		if reg.Capable(def, s.Type) {
			return def, nil
		}
		tried = appendUnique(tried, string(def))
	}

	if reg.Capable(backend.StaticComposer, s.Type) {
		return backend.StaticComposer, nil
	}
	tried = appendUnique(tried, string(backend.StaticComposer))

	return "", errors.Wrap(errors.ErrCodeRoutingFailed,
		&errors.RoutingError{SlideType: string(s.Type), Tried: tried},
		"routing failed for %s", s)
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
