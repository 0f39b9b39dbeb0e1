package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCensor(t *testing.T) {
	req := require.New(t)
	censor, err := NewCensor([]string{"badger", "snake"}, '*')
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single word with spacing preserved",
			input:    "the badger is here",
			expected: "the ****** is here",
		},
		{
			name:     "case insensitive",
			input:    "BADGER and Snake",
			expected: "****** and *****",
		},
		{
			name:     "multiple occurrences",
			input:    "badger badger",
			expected: "****** ******",
		},
		{
			name:     "clean text untouched",
			input:    "nothing to see",
			expected: "nothing to see",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, censor.Censor(tt.input))
		})
	}
}

func TestNewCensor_RejectsEmptyWordList(t *testing.T) {
	req := require.New(t)

	_, err := NewCensor(nil, '*')
	req.Error(err)

	_, err = NewCensor([]string{"  ", ""}, '*')
	req.Error(err)
}
