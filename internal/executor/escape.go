package executor

import (
	"regexp"
	"strings"
)

var (
	// schemePrefix matches arguments that look like URLs (RFC 3986 scheme
	// followed by a colon). Those are passed through untouched.
	schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)

	// posixSpecial lists the characters sh would otherwise interpret. A
	// leading # starts a comment and a leading ~ expands, so both are escaped
	// wherever they appear.
	posixSpecial = regexp.MustCompile("[\"\\s'$`\\\\(){}\\[\\]|&;<>*?!#~]")
)

// EscapeArg escapes arg for the platform shell. On POSIX every shell
// metacharacter and whitespace character is backslash-escaped, except a
// newline, which is single-quoted since sh drops a backslash-newline pair.
// On Windows an argument containing a space, quote, ampersand or pipe is
// wrapped in double quotes with inner quotes escaped. An empty argument
// becomes an empty quoted string. URLs are returned unchanged.
func EscapeArg(arg string, windows bool) string {
	if schemePrefix.MatchString(arg) {
		return arg
	}

	if windows {
		if arg == "" {
			return `""`
		}
		if strings.ContainsAny(arg, ` "&|`) {
			return `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
		}
		return arg
	}

	if arg == "" {
		return "''"
	}
	return posixSpecial.ReplaceAllStringFunc(arg, func(c string) string {
		if c == "\n" {
			return "'\n'"
		}
		return `\` + c
	})
}

// BuildCommandLine renders the shell command line for path and args: the
// quoted binary path followed by the escaped arguments.
func BuildCommandLine(path string, args []string, windows bool) string {
	var b strings.Builder
	b.WriteString(`"` + path + `"`)
	for _, arg := range args {
		b.WriteByte(' ')
		b.WriteString(EscapeArg(arg, windows))
	}
	return b.String()
}
