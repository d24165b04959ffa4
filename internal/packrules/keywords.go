package packrules

import "regexp"

// keywordRule pairs a product-text pattern with a pack-size adjustment. Rules
// are evaluated in order; the first match wins. Keeping the table as data means
// the keyword set can grow without touching resolver logic.
type keywordRule struct {
	pattern *regexp.Regexp
	reason  string
	apply   func(raw int) int
}

// individualPattern marks products that are always sold as single units, no
// matter what pack metadata says (a "kit" recorded with pack 5 is still a kit).
var individualPattern = regexp.MustCompile(`\b(device|mod|kit|starter|battery|charger|case|tank|atomizer)\b`)

// packRequiredRules covers product families that physically ship in sealed
// multiples even when no explicit pack rule is stored.
var packRequiredRules = []keywordRule{
	{
		pattern: regexp.MustCompile(`\b(disposable|puff|bar)\b`),
		reason:  "disposables boxed in 10s",
		apply:   func(raw int) int { return max(raw, 10) },
	},
	{
		pattern: regexp.MustCompile(`\bcoil\b`),
		reason:  "coils in 5-packs",
		apply:   func(raw int) int { return max(raw, 5) },
	},
	{
		pattern: regexp.MustCompile(`\b(liquid|juice|flavou?r|10ml|30ml|60ml)\b`),
		reason:  "e-liquid case pack only when stored pack says so",
		apply: func(raw int) int {
			if raw > 1 {
				return raw
			}
			return 1
		},
	},
	{
		pattern: regexp.MustCompile(`\b(pod|cartridge|refill)\b`),
		reason:  "pods in 2-4 packs",
		apply:   func(raw int) int { return max(raw, 2) },
	},
	{
		pattern: regexp.MustCompile(`\b(drip tip|o-ring|screw|spare)\b`),
		reason:  "small accessories in multipacks",
		apply:   func(raw int) int { return max(raw, 5) },
	},
}
