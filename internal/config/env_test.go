// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHelpers(t *testing.T) {
	t.Setenv("TR_TEST_STR", "value")
	t.Setenv("TR_TEST_EMPTY", "")
	t.Setenv("TR_TEST_BOOL", "yes")
	t.Setenv("TR_TEST_TRUE", "1")
	t.Setenv("TR_TEST_INT", " 42 ")
	t.Setenv("TR_TEST_FLOAT", "0.5")
	t.Setenv("TR_TEST_LIST", "a, ,b,")

	assert.Equal(t, "value", ParseString("TR_TEST_STR", "d"))
	assert.Equal(t, "d", ParseString("TR_TEST_EMPTY", "d"))
	assert.Equal(t, "d", ParseString("TR_TEST_UNSET", "d"))

	assert.False(t, ParseBool("TR_TEST_BOOL", false), "yes is not a Go boolean")
	assert.True(t, ParseBool("TR_TEST_TRUE", false))
	assert.True(t, ParseBool("TR_TEST_UNSET", true))

	assert.Equal(t, int64(42), ParseInt64("TR_TEST_INT", 0))
	assert.Equal(t, int64(7), ParseInt64("TR_TEST_STR", 7))

	assert.Equal(t, 0.5, ParseFloat("TR_TEST_FLOAT", 0))
	assert.Equal(t, 0.25, ParseFloat("TR_TEST_STR", 0.25))

	assert.Equal(t, []string{"a", "b"}, ParseList("TR_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, ParseList("TR_TEST_UNSET", []string{"x"}))
}
