package database

// NewItem holds the fields needed to create or replace an item.
type NewItem struct {
	Title       string
	URL         string
	Content     string
	ContentType string
	Status      string // defaults to "publish"
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalItems     int
	PublishedItems int
	ContentTypes   int
	MetaRows       int
	TaggedItems    int
}
