package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"name":"Acme"}`, `{"name":"Acme"}`},
		{"json fence", "```json\n{\"value\": 42}\n```", `{"value": 42}`},
		{"bare fence", "```\n[\"a\",\"b\"]\n```", `["a","b"]`},
		{"prose around object", "Here you go:\n{\"queries\":[]}\nThanks", `{"queries":[]}`},
		{"array before object", `["x", {"y":1}]`, `["x", {"y":1}]`},
		{"object containing array", `{"queries":["a"]}`, `{"queries":["a"]}`},
		{"no json", "sorry, cannot help", "sorry, cannot help"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSON(tt.input))
		})
	}
}
