package chat

// SplitText splits text into chunks of at most limit runes. Splitting is
// rune-aligned, so a multi-byte character is never cut in half, and the
// concatenation of the chunks equals the input.
func SplitText(text string, limit int) []string {
	if limit <= 0 || text == "" {
		return nil
	}

	var chunks []string
	runes := []rune(text)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
