package middleware

import (
	"github.com/checkmarble/marble-frontend-sub003/pkg/pipeline"
	"golang.org/x/text/language"
)

// LocaleCookie is the cookie that overrides Accept-Language negotiation.
const LocaleCookie = "lang"

// Locale returns a middleware negotiating the response language among
// supported (the first one is the default). The chosen BCP 47 tag is
// published under LocaleKey and sent back as Content-Language.
//
// It panics if supported is empty.
func Locale(supported ...language.Tag) *pipeline.Definition {
	if len(supported) == 0 {
		panic("middleware: Locale needs at least one supported language")
	}
	matcher := language.NewMatcher(supported)

	return pipeline.CreateMiddleware(nil, func(inv *pipeline.Invocation, next pipeline.NextFunc, exit pipeline.ExitFunc) (*pipeline.Result, error) {
		var preferred []string
		if c, err := inv.Request.Cookie(LocaleCookie); err == nil {
			preferred = append(preferred, c.Value)
		}
		preferred = append(preferred, inv.Request.Header.Get("Accept-Language"))

		// MatchStrings ignores unparsable entries and falls back to supported[0].
		_, index := language.MatchStrings(matcher, preferred...)
		tag := supported[index].String()

		return next(
			pipeline.WithContext(pipeline.Context{LocaleKey: tag}),
			pipeline.WithHeader("Content-Language", tag),
		)
	}, pipeline.WithName("locale"))
}

// GetLocale returns the locale published by Locale, or "".
func GetLocale(c pipeline.Context) string {
	tag, _ := pipeline.Value[string](c, LocaleKey)
	return tag
}
