package anthropic

// BuildCachedSystemBlocks returns a single system block marked as a prompt
// cache breakpoint with the default 5 minute TTL. The extraction prompt is
// identical across every page of a run, so later calls read it from cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: "5m"}}}
}
