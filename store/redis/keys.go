package redis

// All keys are prefixed with "runner:" to avoid collisions.
const keyPrefix = "runner:"

// flagKey returns the key for a flag: runner:flag:{name}
func flagKey(name string) string { return keyPrefix + "flag:" + name }
