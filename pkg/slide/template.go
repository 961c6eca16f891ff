package slide

import (
	"sort"

	"github.com/mbaylis/slideforge/pkg/errors"
)

// Template describes the slide sequence a carousel follows. Templates are
// a fixed catalogue: the content engine fills them, the orchestrator only
// needs the name and the expected slide types for sanity checks.
type Template struct {
	Name        string
	Description string
	SlideTypes  []Type // expected sequence, informational
}

// templates is the built-in catalogue. Names match the batch JSON schema.
var templates = map[string]Template{
	"tips_5": {
		Name:        "tips_5",
		Description: "Hook, five tips, call to action",
		SlideTypes:  []Type{TypeHook, TypeTips, TypeTips, TypeTips, TypeTips, TypeTips, TypeCTA},
	},
	"myth_busting": {
		Name:        "myth_busting",
		Description: "Hook, myth/fact pairs, call to action",
		SlideTypes:  []Type{TypeHook, TypeMyth, TypeMyth, TypeMyth, TypeCTA},
	},
	"data_driven": {
		Name:        "data_driven",
		Description: "Hook, stat, chart, takeaway, call to action",
		SlideTypes:  []Type{TypeHook, TypeStat, TypeData, TypeTips, TypeCTA},
	},
	"process_walkthrough": {
		Name:        "process_walkthrough",
		Description: "Hook, numbered process steps, call to action",
		SlideTypes:  []Type{TypeHook, TypeProcess, TypeProcess, TypeProcess, TypeCTA},
	},
	"comparison": {
		Name:        "comparison",
		Description: "Hook, side-by-side comparisons, call to action",
		SlideTypes:  []Type{TypeHook, TypeComparison, TypeComparison, TypeCTA},
	},
	"checklist": {
		Name:        "checklist",
		Description: "Hook, checklist, quote, call to action",
		SlideTypes:  []Type{TypeHook, TypeChecklist, TypeQuote, TypeCTA},
	},
}

// LookupTemplate returns the named template from the catalogue.
func LookupTemplate(name string) (Template, error) {
	t, ok := templates[name]
	if !ok {
		return Template{}, errors.New(errors.ErrCodeInvalidTemplate,
			"unknown template: %q (run 'slideforge render --help' for the list)", name)
	}
	return t, nil
}

// TemplateNames returns the catalogue names in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TemplateCatalogue returns all templates sorted by name.
func TemplateCatalogue() []Template {
	out := make([]Template, 0, len(templates))
	for _, name := range TemplateNames() {
		out = append(out, templates[name])
	}
	return out
}
