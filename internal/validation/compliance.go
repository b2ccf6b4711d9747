package validation

import "github.com/jonathan/recommendation-writer/internal/types"

// CheckKeywords reports include/exclude compliance with case-insensitive
// substring matching.
func CheckKeywords(text string, include, exclude []string) types.KeywordCompliance {
	var kc types.KeywordCompliance
	for _, kw := range include {
		if containsFold(text, kw) {
			kc.Included = append(kc.Included, kw)
		} else {
			kc.Missing = append(kc.Missing, kw)
		}
	}
	for _, kw := range exclude {
		if containsFold(text, kw) {
			kc.Violated = append(kc.Violated, kw)
		} else {
			kc.Avoided = append(kc.Avoided, kw)
		}
	}
	return kc
}
