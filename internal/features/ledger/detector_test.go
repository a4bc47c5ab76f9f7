package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAwardGesture(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"+", true},
		{"++", true},
		{"спасибо", true},
		{"Спасибо!", true},
		{"СПС", true},
		{"👍", true},
		{"  + ", true},
		{"+1", false},
		{"спасибо большое", false},
		{"-", false},
		{"", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, IsAwardGesture(tc.text), "текст: %q", tc.text)
	}
}

func TestIsRetractGesture(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"-", true},
		{"--", true},
		{" - ", true},
		{"+", false},
		{"---", false},
		{"минус", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, IsRetractGesture(tc.text), "текст: %q", tc.text)
	}
}
