// Package watch defines the core types and collaborator interfaces for the
// stock-status detection engine. It is dependency-free so every subsystem can
// import it without cycles.
package watch

import (
	"time"
)

// Status represents the stock state of a tracked product.
type Status string

// Status values persisted in the product store. Checking is transient: a
// completed check always resolves to one of the three terminal values.
const (
	StatusChecking   Status = "checking"
	StatusInStock    Status = "in-stock"
	StatusOutOfStock Status = "out-of-stock"
	StatusError      Status = "error"
)

// Terminal reports whether the status is a settled check outcome.
func (s Status) Terminal() bool {
	switch s {
	case StatusInStock, StatusOutOfStock, StatusError:
		return true
	default:
		return false
	}
}

// Confidence labels how strong the classification signal was.
type Confidence string

// Confidence tiers, from weakest to strongest.
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// MaxEvidencePhrases bounds how many evidence phrases are retained for
// display on a product.
const MaxEvidencePhrases = 5

// Product is the metadata persisted for each tracked product page.
type Product struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Brand         string     `json:"brand,omitempty"`
	URL           string     `json:"url"`
	Status        Status     `json:"status"`
	Confidence    Confidence `json:"confidence,omitempty"`
	Evidence      []string   `json:"evidence,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ProductUpdate carries the fields a check may mutate. Nil pointers leave the
// stored value untouched; Evidence is replaced whenever non-nil.
type ProductUpdate struct {
	Status        *Status
	Confidence    *Confidence
	Evidence      []string
	LastCheckedAt *time.Time
}

// CheckRecord is an append-only history entry, one per completed check
// attempt. Records are never mutated after creation.
type CheckRecord struct {
	ProductID  string     `json:"product_id"`
	Status     Status     `json:"status"`
	Confidence Confidence `json:"confidence,omitempty"`
	Evidence   []string   `json:"evidence,omitempty"`
	CheckedAt  time.Time  `json:"checked_at"`
}

// Classification is the transient verdict produced by the classifier.
type Classification struct {
	InStock    bool
	Confidence Confidence
	Evidence   []string
}

// Status maps the boolean verdict onto the persisted status enum.
func (c Classification) Status() Status {
	if c.InStock {
		return StatusInStock
	}
	return StatusOutOfStock
}

// RestockEvent describes an out-of-stock to in-stock transition.
type RestockEvent struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Brand     string `json:"brand,omitempty"`
	URL       string `json:"url"`
}

// Page is the result returned by a fetch channel.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Channel    string
	Duration   time.Duration
}
