package id

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
	assert.Len(t, id1.String(), 26)
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{RequestPrefix, BrowserPrefix} {
		t.Run(prefix, func(t *testing.T) {
			s := gen.GenerateWithPrefix(prefix)
			require.True(t, strings.HasPrefix(s, prefix+"_"), s)

			parts := strings.Split(s, "_")
			require.Len(t, parts, 2)
			assert.True(t, IsValid(parts[1]))
		})
	}
}

func TestTypedIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewRequestID().String(), "req_"))
	assert.True(t, strings.HasPrefix(NewBrowserID().String(), "nav_"))
	assert.True(t, IsValid(NewRequestID().String()))
}

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("req_not-a-ulid"))
	assert.True(t, IsValid(NewGenerator().Generate().String()))
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewRequestID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("req_garbage")
	assert.Error(t, err)
}
