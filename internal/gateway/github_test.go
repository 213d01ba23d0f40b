package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
		wantErr error
	}{
		{"plain repo URL", "https://github.com/acme/repo", "acme/repo", nil},
		{"trailing slash", "https://github.com/acme/repo/", "acme/repo", nil},
		{"extra path segments", "https://github.com/acme/repo/tree/main/docs", "acme/repo", nil},
		{"surrounding whitespace", "  https://github.com/acme/repo\n", "acme/repo", nil},
		{"bare full name", "acme/repo", "acme/repo", nil},
		{"wrong host", "https://gitlab.com/acme/repo", "", ErrUnsupportedHost},
		{"subdomain is a different host", "https://www.github.com/acme/repo", "", ErrUnsupportedHost},
		{"host only", "https://github.com", "", ErrUnsupportedHost},
		{"owner only", "https://github.com/acme", "", ErrUnsupportedHost},
		{"not a URL", "just some text", "", ErrUnsupportedHost},
		{"empty", "", "", ErrUnsupportedHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocator(tt.locator, DefaultHost)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLocator_CaseInsensitiveHost(t *testing.T) {
	got, err := ParseLocator("https://GitHub.com/acme/repo", DefaultHost)
	assert.NoError(t, err)
	assert.Equal(t, "acme/repo", got)
}
