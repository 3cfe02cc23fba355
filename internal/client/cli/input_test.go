package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/dmitrijs2005/schoolkeeper/internal/client/models"
	"github.com/dmitrijs2005/schoolkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(s string) *bufio.Scanner {
	return bufio.NewScanner(strings.NewReader(s))
}

func TestReadAssignments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Unix newlines, stop on empty line",
			input:    "a=1\nb=2\n\nc=3\n",
			expected: []string{"a=1", "b=2"},
		},
		{
			name:     "Windows CRLF, stop on empty line",
			input:    "a=1\r\nb=2\r\n\r\n",
			expected: []string{"a=1", "b=2"},
		},
		{
			name:     "Immediate blank line gives empty slice",
			input:    "\n",
			expected: []string{},
		},
		{
			name:     "EOF without trailing blank line",
			input:    "a=1\nb=2",
			expected: []string{"a=1", "b=2"},
		},
		{
			name:     "Spaces are preserved",
			input:    " name = value \n\n",
			expected: []string{" name = value "},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := ReadAssignments(lines(tc.input), "Fields?", &out)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
			assert.Contains(t, out.String(), "Fields?")
		})
	}
}

func TestParseAssignments(t *testing.T) {
	got, err := ParseAssignments([]string{
		"fullName=Asha",
		" maxMarks = 100 ",
		`remarks="needs work = more practice"`,
		"section=",
	})
	require.NoError(t, err)
	assert.Equal(t, models.Fields{
		"fullName": "Asha",
		"maxMarks": "100",
		"remarks":  "needs work = more practice",
		"section":  "",
	}, got)
}

func TestParseAssignments_Errors(t *testing.T) {
	for _, in := range [][]string{{"novalue"}, {"=x"}, {`a="bad\q"`}} {
		_, err := ParseAssignments(in)
		require.ErrorIs(t, err, common.ErrValidation, "input %v", in)
	}
}
