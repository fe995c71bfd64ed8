package markdown

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		sanitize bool
		src      string
		contains []string
		absent   []string
	}{
		{
			name:     "basic markdown",
			sanitize: true,
			src:      "# Title\n\n**bold** text",
			contains: []string{"<h1", "Title</h1>", "<strong>bold</strong>"},
		},
		{
			name:     "raw script dropped when sanitizing",
			sanitize: true,
			src:      "hello <script>alert(1)</script>",
			contains: []string{"hello"},
			absent:   []string{"<script>"},
		},
		{
			name:     "javascript link dropped when sanitizing",
			sanitize: true,
			src:      "[click](javascript:alert(1))",
			absent:   []string{"javascript:"},
		},
		{
			name:     "raw html passes without sanitize",
			sanitize: false,
			src:      "<img src=x onerror=alert(1)>",
			contains: []string{"onerror=alert(1)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Options{Sanitize: tt.sanitize})
			defer r.Stop()
			out, err := r.Render(tt.src)
			require.NoError(t, err)
			for _, want := range tt.contains {
				require.Contains(t, out, want)
			}
			for _, bad := range tt.absent {
				require.NotContains(t, strings.ToLower(out), bad)
			}
		})
	}
}

func TestRenderUsesCache(t *testing.T) {
	r := New(Options{Sanitize: true, CacheEntries: 8, CacheMaxAge: time.Minute})
	defer r.Stop()

	first := r.MustRender("*memo*")
	second := r.MustRender("*memo*")
	require.Equal(t, first, second)
	require.Equal(t, int64(1), r.Stats()["hits"])
	require.Equal(t, int64(1), r.Stats()["misses"])
}

func TestStatsWithoutCache(t *testing.T) {
	r := New(Options{})
	defer r.Stop()
	require.Nil(t, r.Stats())
	require.False(t, r.Sanitizing())
}
