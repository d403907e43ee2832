package prompts

import (
	_ "embed"
	"strings"
)

//go:embed premium_advice.txt
var premiumAdvice string

//go:embed no_results_advice.txt
var noResultsAdvice string

func PremiumAdvice() string   { return premiumAdvice }
func NoResultsAdvice() string { return strings.TrimSpace(noResultsAdvice) }
