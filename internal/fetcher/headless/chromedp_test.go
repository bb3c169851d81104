package headless

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWrapExtractScript(t *testing.T) {
	wrapped := wrapExtractScript(`return document.title;`)
	assert.True(t, strings.HasPrefix(wrapped, "(() => {"))
	assert.Contains(t, wrapped, "return document.title;")
	assert.Contains(t, wrapped, "__r === undefined ? null : __r")
}

func TestNewBuilderDefaults(t *testing.T) {
	b := NewBuilder(Config{ExtractScript: "return 1;"})
	defer b.Close()

	assert.Equal(t, 10*time.Second, b.cfg.PageLoadTimeout)
	assert.NotNil(t, b.logger)
	assert.NotNil(t, b.allocator)
}
