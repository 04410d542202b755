package ports

// StorePort is a keyed store of per-session values.
type StorePort[T any] interface {
	Set(key string, val T)
	Get(key string) (T, bool)
	Delete(key string)
	Len() int
}
