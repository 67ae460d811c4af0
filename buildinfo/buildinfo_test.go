package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	p := Get()
	assert.Equal(t, "dev", p.Version)
	assert.Equal(t, "unknown", p.GitCommit)
	assert.Equal(t, "signupdesk dev (commit unknown, built unknown)", p.String())
}
