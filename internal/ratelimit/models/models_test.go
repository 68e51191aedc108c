package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeysEscapeDelimiters(t *testing.T) {
	assert.Equal(t, "ip:2001_db8__1:auth", NewIPKey("2001:db8::1", ClassAuth))
	assert.Equal(t, "account:a_b:account_write", NewAccountKey("a:b", ClassAccountWrite))
	assert.NotEqual(t, NewIPKey("10.0.0.1:auth", ClassAuth), NewIPKey("10.0.0.1", ClassAuth))
}
