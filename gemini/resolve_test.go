package gemini_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ninedraft/gemcore/gemini"
)

func TestResolve(test *testing.T) {
	var tc = func(name, base, target, expected string) {
		test.Run(name, func(test *testing.T) {
			var got = gemini.Resolve(base, target)
			require.Equal(test, expected, got)
		})
	}

	tc("path is a directory",
		"gemini://example.com/foo", "bar", "gemini://example.com/foo/bar")
	tc("directory",
		"gemini://example.com/foo/", "bar", "gemini://example.com/foo/bar")
	tc("gemtext document",
		"gemini://example.com/dir/file.gmi", "other.gmi", "gemini://example.com/dir/other.gmi")
	tc("host root",
		"gemini://example.com", "page.gmi", "gemini://example.com/page.gmi")
	tc("absolute path",
		"gemini://example.com/foo/bar.gmi", "/baz", "gemini://example.com/baz")
	tc("dot segments",
		"gemini://example.com/a/b", "../c", "gemini://example.com/a/c")
	tc("query",
		"gemini://example.com/search.gmi", "?q=go", "gemini://example.com/search.gmi?q=go")
	tc("network path",
		"gemini://example.com/foo/", "//other.org/x", "gemini://other.org/x")
	tc("absolute target is unchanged",
		"gemini://example.com/foo", "gemini://other.org/a/../b", "gemini://other.org/a/../b")
	tc("other scheme is unchanged",
		"gemini://example.com/foo", "https://example.com/", "https://example.com/")
	tc("space is dropped at root",
		"gemini://example.com/", "foo bar", "gemini://example.com/foobar")
	tc("sibling document",
		"gemini://example.com/file.gmi", "other.gmi", "gemini://example.com/other.gmi")
	tc("space is dropped",
		"gemini://example.com/foo", "foo bar", "gemini://example.com/foo/foobar")
	tc("illegal characters are dropped",
		"gemini://example.com/", "a<b>|c", "gemini://example.com/abc")
	tc("unresolvable target is returned as is",
		"gemini://example.com/", ":bad", ":bad")
}

func TestResolveStrict(test *testing.T) {
	test.Run("resolvable", func(test *testing.T) {
		var got, err = gemini.ResolveStrict("gemini://example.com/foo", "bar")
		require.NoError(test, err)
		require.Equal(test, "gemini://example.com/foo/bar", got)
	})
	test.Run("unresolvable", func(test *testing.T) {
		var _, err = gemini.ResolveStrict("gemini://example.com/", ":bad")
		require.ErrorIs(test, err, gemini.ErrUnresolvable)
	})
	test.Run("bad base", func(test *testing.T) {
		var _, err = gemini.ResolveStrict("gemini://exa mple.com/%zz", "bar")
		require.ErrorIs(test, err, gemini.ErrUnresolvable)
	})
}
