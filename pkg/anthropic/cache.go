package anthropic

// CachedSystem builds a single system block with a cache breakpoint. The
// extraction prompt is identical for every check, so consecutive checks
// read it from the prompt cache.
func CachedSystem(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: ttl}}}
}
