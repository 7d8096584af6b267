package store

// SanitizeKey maps an arbitrary cache key to a filesystem-safe name. The
// allowed set is ASCII letters, digits, '.', '_' and '-'; every other byte
// becomes '_'. The mapping is not injective, so callers should use keys that
// already differ within the allowed set.
func SanitizeKey(key string) string {
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '.', c == '_', c == '-':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
