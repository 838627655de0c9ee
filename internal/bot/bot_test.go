package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	tests := []struct {
		text    string
		cmd     string
		args    []string
		command bool
	}{
		{"/start", "start", nil, true},
		{"/top@portal_bot", "top", nil, true},
		{"  /comment 12 nice notes ", "comment", []string{"12", "nice", "notes"}, true},
		{"!Points", "points", nil, true},
		{".item #4", "item", []string{"#4"}, true},
		{"hello", "", nil, false},
		{"/", "", nil, false},
		{"/@bot", "", nil, false},
		{"", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, args, ok := p.ParseCommand(tt.text)
			assert.Equal(t, tt.command, ok)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.args, args)
		})
	}
}
