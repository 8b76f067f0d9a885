package app

// Split breaks text into cumulative pages: page k holds the first (k+1)*size characters,
// and the final page is always the full text. Sizes count runes, not bytes.
func Split(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	var pages []string
	for end := size; end < len(runes); end += size {
		pages = append(pages, string(runes[:end]))
	}
	if len(pages) == 0 || len(runes) > len([]rune(pages[len(pages)-1])) {
		pages = append(pages, text)
	}
	return pages
}
