package fetch

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Both are safe for concurrent use once constructed.
var (
	sanitizer = bluemonday.UGCPolicy()

	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

// toMarkdown sanitizes raw HTML and converts it to markdown, truncated to
// maxLen runes. Relative links resolve against sourceURL. Conversion failure
// yields an empty string; the caller still has the extracted text.
func toMarkdown(rawHTML, sourceURL string, maxLen int) string {
	clean := sanitizer.Sanitize(rawHTML)
	md, err := mdConverter.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil {
		return ""
	}
	return truncate(md, maxLen)
}
