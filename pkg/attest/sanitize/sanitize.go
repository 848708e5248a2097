package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text strips all markup from a free-text order field. Address lines and
// similar user-supplied strings allow no HTML at all.
func Text(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
