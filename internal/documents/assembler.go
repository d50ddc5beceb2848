package documents

// Assemble builds a Document from page results, preserving order
func Assemble(results []PageResult) Document {
	pages := make([]PageResult, len(results))
	copy(pages, results)
	return Document{Pages: pages}
}
