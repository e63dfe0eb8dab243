package email

import (
	"fmt"
	"strings"

	"restock-notifier/pkg/stock"
)

func writeStyle(b *strings.Builder, accent string) {
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background: #fff; }\n")
	b.WriteString(fmt.Sprintf(".header { border-bottom: 2px solid %s; padding-bottom: 10px; margin-bottom: 20px; }\n", accent))
	b.WriteString(".content { background: #f8f9fa; padding: 20px; border-radius: 8px; margin: 15px 0; }\n")
	b.WriteString(".info { color: #7f8c8d; font-size: 0.9em; margin: 15px 0; }\n")
	b.WriteString(".footer { margin-top: 20px; padding-top: 10px; border-top: 2px solid #ecf0f1; color: #7f8c8d; font-size: 0.9em; }\n")
	b.WriteString(fmt.Sprintf("a { color: %s; text-decoration: none; }\n", accent))
	b.WriteString("a:hover { text-decoration: underline; }\n")
	b.WriteString("@media (prefers-color-scheme: dark) {\n")
	b.WriteString("body { background: #1a1a1a; color: #e0e0e0; }\n")
	b.WriteString(".content { background: #2a2a2a; }\n")
	b.WriteString(".info { color: #a0a0a0; }\n")
	b.WriteString(".footer { border-top-color: #444; color: #a0a0a0; }\n")
	b.WriteString("}\n")
	b.WriteString("</style>\n</head>\n<body>\n")
}

func formatChangeBody(ev *stock.ChangeEvent) string {
	var b strings.Builder

	if ev.InStock {
		writeStyle(&b, "#4caf50")
		b.WriteString("<div class=\"header\">\n")
		b.WriteString("<h2>Restock Alert</h2>\n")
		b.WriteString("</div>\n")

		b.WriteString("<div class=\"content\">\n")
		b.WriteString(fmt.Sprintf("<p><strong>%s</strong> is back in stock!</p>\n", escapeHTML(ev.Name)))
		b.WriteString(fmt.Sprintf("<p><a href=\"%s\">Buy now</a> - popular items sell out quickly.</p>\n", escapeHTML(ev.URL)))
		b.WriteString("</div>\n")
	} else {
		writeStyle(&b, "#e67e22")
		b.WriteString("<div class=\"header\">\n")
		b.WriteString("<h2>Sold Out</h2>\n")
		b.WriteString("</div>\n")

		b.WriteString("<div class=\"content\">\n")
		b.WriteString(fmt.Sprintf("<p><strong>%s</strong> is no longer in stock.</p>\n", escapeHTML(ev.Name)))
		b.WriteString("<p>You'll get another alert the moment it comes back.</p>\n")
		b.WriteString("</div>\n")
	}

	b.WriteString("<div class=\"info\">\n")
	b.WriteString("<ul>\n")
	b.WriteString(fmt.Sprintf("<li>Detected at: %s UTC</li>\n", ev.DetectedAt.Format("Jan 2, 2006 at 3:04 PM")))
	b.WriteString(fmt.Sprintf("<li>Item: %s</li>\n", escapeHTML(ev.Identifier)))
	b.WriteString("</ul>\n")
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"footer\">\n")
	b.WriteString(fmt.Sprintf("<a href=\"%s\">View product page</a>\n", escapeHTML(ev.URL)))
	b.WriteString("</div>\n")

	b.WriteString("</body>\n</html>")

	return b.String()
}

func formatFetchErrorBody(identifier, pageURL string, checkErr error) string {
	var b strings.Builder
	writeStyle(&b, "#e74c3c")

	b.WriteString("<div class=\"header\">\n")
	b.WriteString("<h2>Stock Check Failed</h2>\n")
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"content\">\n")
	b.WriteString(fmt.Sprintf("<p>The check for <strong>%s</strong> did not complete.</p>\n", escapeHTML(identifier)))
	b.WriteString(fmt.Sprintf("<p>%s</p>\n", escapeHTML(checkErr.Error())))
	b.WriteString("<p>The item's last known state is unchanged and it will be retried on the next sweep.</p>\n")
	b.WriteString("</div>\n")

	b.WriteString("<div class=\"footer\">\n")
	b.WriteString(fmt.Sprintf("<a href=\"%s\">View product page</a>\n", escapeHTML(pageURL)))
	b.WriteString("</div>\n")

	b.WriteString("</body>\n</html>")

	return b.String()
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}
