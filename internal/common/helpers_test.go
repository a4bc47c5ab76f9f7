package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluralizeKudos(t *testing.T) {
	cases := map[int64]string{
		1:   "кудос",
		2:   "кудоса",
		4:   "кудоса",
		5:   "кудосов",
		11:  "кудосов",
		21:  "кудос",
		111: "кудосов",
	}
	for n, want := range cases {
		assert.Equal(t, want, PluralizeKudos(n), "n=%d", n)
	}
}

func TestFormatKudosAmount(t *testing.T) {
	assert.Equal(t, "+2 кудоса", FormatKudosAmount(2))
	assert.Equal(t, "+1 кудос", FormatKudosAmount(1))
	assert.Equal(t, "-2 кудоса", FormatKudosAmount(-2))
}
