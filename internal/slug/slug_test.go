package slug_test

import (
	"regexp"
	"testing"

	"github.com/Fusionaimcp4/localboxs/internal/slug"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func TestMake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "spaces and punctuation", in: "My Business Inc.", want: "my-business-inc"},
		{name: "underscore and hyphen", in: "Test-Company_123", want: "test-company-123"},
		{name: "special characters", in: "Special@Characters!", want: "special-characters"},
		{name: "hostname", in: "example.com", want: "example-com"},
		{name: "diacritics", in: "Café Olé", want: "cafe-ole"},
		{name: "leading and trailing junk", in: "  --Acme--  ", want: "acme"},
		{name: "collapsed runs", in: "a  &&  b", want: "a-b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := slug.Make(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Regexp(t, slugPattern, got)
		})
	}
}

func TestMake_NoAlphanumerics(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "!!!", "@#$%", "—"} {
		_, err := slug.Make(in)
		require.ErrorIs(t, err, slug.ErrEmpty, "input %q", in)
	}
}

func TestFileSafeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Acme Corp", slug.FileSafeName("Acme Corp"))
	assert.Equal(t, "_etc_passwd", slug.FileSafeName("../etc/passwd"))
	assert.Equal(t, "ab", slug.FileSafeName("a\nb"))
	assert.Equal(t, "Joe_s C_ Shop", slug.FileSafeName("Joe/s C: Shop"))
}
