// Package validation scores generated recommendations for structure, keyword
// compliance and confidence, and screens free-text instructions before they
// reach a prompt. It annotates; it never blocks a response.
package validation
