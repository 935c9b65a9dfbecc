package entities

import "time"

// PageContent is an immutable snapshot of a rendered page
type PageContent struct {
	URL       string    `json:"url"`   // URL the page was rendered from
	Title     string    `json:"title"` // document title, empty when unavailable
	HTML      string    `json:"html"`  // rendered markup after the page settled
	FetchedAt time.Time `json:"fetched_at"`
}

// Payload is a base64 block found inside rendered HTML
type Payload struct {
	Encoded   string `json:"encoded"`              // base64 text exactly as it appeared
	MediaType string `json:"media_type,omitempty"` // set only when matched through a data URI
	Decoded   []byte `json:"-"`                    // nil when Encoded is not valid base64
}

// IsDecoded reports whether the payload text could be decoded.
func (p *Payload) IsDecoded() bool {
	return p != nil && p.Decoded != nil
}
