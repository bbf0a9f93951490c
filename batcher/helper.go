package batcher

func scoringKey[K comparable](keys []K) []K {
	keymap := make(map[K]struct{}, len(keys))
	result := make([]K, 0, len(keys))

	var ok bool
	for _, key := range keys {
		_, ok = keymap[key]
		if !ok {
			keymap[key] = struct{}{}
			result = append(result, key)
		}
	}

	return result
}
