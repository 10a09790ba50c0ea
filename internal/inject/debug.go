package inject

import (
	"strings"

	"github.com/aymerick/douceur/css"

	"pixelflow-proxy/internal/model"
	"pixelflow-proxy/internal/sanitize"
)

// DebugStyleID is the id of the injected debug <style> element.
const DebugStyleID = "pixelflow-debug-inline-css"

// debugScope limits highlighting to logged-in viewers.
const debugScope = ".logged-in "

type declaration struct {
	property, value string
}

var debugDeclarations = map[string][]declaration{
	model.ClassItem: {
		{"border", "1px solid green"},
		{"background", "rgba(0,0,0,0.1)"},
	},
	model.ClassItemName:   {{"border", "1px solid red"}},
	model.ClassPrice:      {{"border", "1px solid blue"}},
	model.ClassQuantity:   {{"border", "1px solid orange"}},
	model.ClassAddToCart:  {{"border", "1px solid #fc0390"}},
	model.ClassBuy:        {{"border", "3px solid #67a174"}},
	model.ClassContainer:  {{"border", "3px solid #fcdb03"}},
	model.ClassTotal:      {{"border", "1px solid #b103fc"}},
	model.ClassPlaceOrder: {{"border", "1px solid #b01a81"}},
}

// DebugStylesheet builds one rule per class whose debug key is enabled.
// Keys sharing a class produce a single rule.
func DebugStylesheet(debug model.DebugOptions) *css.Stylesheet {
	sheet := css.NewStylesheet()
	seen := make(map[string]bool)
	for _, key := range model.ClassKeys {
		if !debug.Enabled(key) {
			continue
		}
		class := key.Class()
		decls, ok := debugDeclarations[class]
		if !ok || seen[class] {
			continue
		}
		seen[class] = true

		rule := css.NewRule(css.QualifiedRule)
		rule.Prelude = debugScope + "." + class
		rule.Selectors = []string{rule.Prelude}
		for _, d := range decls {
			decl := css.NewDeclaration()
			decl.Property = d.property
			decl.Value = d.value
			decl.Important = true
			rule.Declarations = append(rule.Declarations, decl)
		}
		sheet.Rules = append(sheet.Rules, rule)
	}
	return sheet
}

// DebugStyle renders the debug <style> element, or "" when debug mode is off
// or no debug key is enabled.
func DebugStyle(general model.GeneralOptions, debug model.DebugOptions) string {
	if !general.Debug() {
		return ""
	}
	sheet := DebugStylesheet(debug)
	if len(sheet.Rules) == 0 {
		return ""
	}
	body := strings.Join(strings.Fields(sanitize.Control(strings.ReplaceAll(sheet.String(), "\n", " "))), " ")
	return `<style id="` + DebugStyleID + `">` + body + `</style>`
}
