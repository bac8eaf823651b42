package domain

// DefaultKeyPrefix namespaces every key written to a shared key-value store.
const DefaultKeyPrefix = "docingest:"
