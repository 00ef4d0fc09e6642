package feed

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
)

var ErrDocumentMalformed = errors.New("feed document is malformed")

type ParserInterface interface {
	ParseDocument(raw []byte) (*models.Document, error)
}

// Parser decodes Atom feed documents
type Parser struct {
	atom *atom.Parser
}

// NewParser creates a new feed document parser
func NewParser() ParserInterface {
	return &Parser{atom: &atom.Parser{}}
}

// ParseDocument decodes raw into a Document. Input that is empty or not a
// recognizable feed is an error. An RSS or JSON feed yields a Document with a
// nil Feed.
func (p *Parser) ParseDocument(raw []byte) (*models.Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrDocumentMalformed)
	}

	switch feedType := gofeed.DetectFeedType(bytes.NewReader(raw)); feedType {
	case gofeed.FeedTypeAtom:
	case gofeed.FeedTypeRSS, gofeed.FeedTypeJSON:
		return &models.Document{}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized document", ErrDocumentMalformed)
	}

	parsed, err := p.atom.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentMalformed, err)
	}

	return &models.Document{Feed: convertFeed(parsed)}, nil
}

func convertFeed(parsed *atom.Feed) *models.Feed {
	feed := &models.Feed{
		ID:      parsed.ID,
		Title:   parsed.Title,
		Updated: parsed.Updated,
		Entries: make([]models.Entry, 0, len(parsed.Entries)),
	}
	for _, item := range parsed.Entries {
		if item == nil {
			continue
		}
		entry := models.Entry{
			ID:      item.ID,
			Title:   item.Title,
			Updated: item.Updated,
		}
		// gofeed decodes html summaries, so crt.sh entries keep their <br> markup
		if item.Summary != "" {
			entry.Summary = &models.Text{Value: item.Summary}
		}
		feed.Entries = append(feed.Entries, entry)
	}
	return feed
}
