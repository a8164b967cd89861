// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Attention Is All You Need", "attention is all you need"},
		{"  BERT: Pre-training   of Deep  ", "bert pretraining of deep"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTitle(tt.in), tt.in)
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"10.1038/Nature12373", "10.1038/nature12373"},
		{" https://doi.org/10.1038/NATURE12373 ", "10.1038/nature12373"},
		{"doi:10.1038/nature12373", "10.1038/nature12373"},
		{"arXiv:2301.07041", "2301.07041"},
		{"2301.07041", "2301.07041"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeIdentifier(tt.in), tt.in)
	}
}

func TestSourceKey(t *testing.T) {
	tests := []struct {
		name string
		r    SearchResult
		want string
	}{
		{"doi casing ignored", SearchResult{Identifier: "10.1038/Nature12373", URL: "https://x"}, "id:10.1038/nature12373"},
		{"url fallback", SearchResult{URL: "https://example.org/a", Title: "A"}, "url:https://example.org/a"},
		{"title fallback", SearchResult{Title: "Photosynthesis: A Review"}, "title:photosynthesis a review"},
		{"nothing", SearchResult{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.SourceKey())
		})
	}
}
