package models

// Document is a parsed aggregator feed document. Feed is nil when the
// document parsed but was not an Atom feed.
type Document struct {
	Feed *Feed
}

// Feed is the Atom feed container as served by crt.sh
type Feed struct {
	ID      string
	Title   string
	Updated string
	Entries []Entry
}

// Entry describes one issued certificate
type Entry struct {
	ID      string
	Title   string
	Updated string
	Summary *Text
}

// Text is an Atom text construct. Value holds the unescaped text, so HTML
// summaries keep their <br> markup.
type Text struct {
	Value string
}
