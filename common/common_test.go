package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCommaSepToMap(t *testing.T) {
	assert.Equal(t, map[string]string{"qos": "high", "exclusive": "", "constraint": "a=b"},
		SplitCommaSepToMap("qos=high, exclusive,,constraint=a=b"))
	assert.Empty(t, SplitCommaSepToMap(""))
}

func TestGenUUID(t *testing.T) {
	a, b := GenUUID(), GenUUID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
