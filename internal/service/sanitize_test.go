package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextSanitizerClean(t *testing.T) {
	s := newTextSanitizer()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text", input: "  Mãe atendeu  ", want: "Mãe atendeu"},
		{name: "ampersand kept", input: "Pai & Mãe", want: "Pai & Mãe"},
		{name: "comparison kept", input: "faltas a < b", want: "faltas a < b"},
		{name: "tags stripped", input: "<b>Sem</b> retorno", want: "Sem retorno"},
		{name: "script dropped", input: "ok<script>alert(1)</script>", want: "ok"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.clean(tt.input))
		})
	}
}

func TestTextSanitizerEncodedMarkupDoesNotSurvive(t *testing.T) {
	s := newTextSanitizer()

	for _, input := range []string{
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"&lt;img src=x onerror=alert(1)&gt;",
		"&amp;lt;b&amp;gt;x&amp;lt;/b&amp;gt;",
		"&amp;amp;amp;amp;amp;lt;script&amp;amp;amp;amp;amp;gt;",
	} {
		out := s.clean(input)
		assert.NotContains(t, out, "<script", input)
		assert.NotContains(t, out, "<img", input)
		assert.NotContains(t, out, "<b>", input)
	}
}
