// Package normalize turns raw property feed records into listing documents.
package normalize

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/listing"
)

var (
	errNotObject = errors.New("record is not a JSON object")
	errMissingID = errors.New("record has no id")

	htmlTag = regexp.MustCompile(`<[^>]*>`)
)

// Normalizer maps feed records of one tenant to documents.
type Normalizer struct {
	company       string
	progressEvery int
	progress      func(done, total int)
}

// New creates a normalizer that tags every document with company.
func New(company string) *Normalizer {
	return &Normalizer{company: company}
}

// WithProgress makes NormalizeBatch call fn after every `every` records.
func (n *Normalizer) WithProgress(every int, fn func(done, total int)) *Normalizer {
	n.progressEvery, n.progress = every, fn
	return n
}

// Normalize converts a single record. Failures are *domain.NormalizationError.
func (n *Normalizer) Normalize(raw json.RawMessage) (listing.Document, error) {
	if !gjson.ValidBytes(raw) {
		return listing.Document{}, domain.NewNormalizationError("", errNotObject)
	}
	rec := gjson.ParseBytes(raw)
	if !rec.IsObject() {
		return listing.Document{}, domain.NewNormalizationError("", errNotObject)
	}

	id := rec.Get("id")
	if !id.Exists() || id.Type == gjson.Null || id.String() == "" {
		return listing.Document{}, domain.NewNormalizationError("", errMissingID)
	}

	meta := n.metadata(id.String(), rec)
	doc, err := listing.New(meta.PropertyID, Content(meta, description(rec)), meta)
	if err != nil {
		return listing.Document{}, domain.NewNormalizationError(meta.PropertyID, err)
	}
	return doc, nil
}

// Failure pairs a record position with its normalization error.
type Failure struct {
	Index int
	Err   *domain.NormalizationError
}

// NormalizeBatch converts every record. A bad record does not stop the batch:
// it is reported in failures and the rest are still converted, in feed order.
func (n *Normalizer) NormalizeBatch(records []json.RawMessage) ([]listing.Document, []Failure) {
	docs := make([]listing.Document, 0, len(records))
	var failures []Failure
	for i, raw := range records {
		doc, err := n.Normalize(raw)
		if err != nil {
			var nerr *domain.NormalizationError
			if !errors.As(err, &nerr) {
				nerr = &domain.NormalizationError{Err: err}
			}
			failures = append(failures, Failure{Index: i, Err: nerr})
		} else {
			docs = append(docs, doc)
		}
		n.report(i+1, len(records))
	}
	return docs, failures
}

func (n *Normalizer) report(done, total int) {
	if n.progress != nil && n.progressEvery > 0 && done%n.progressEvery == 0 {
		n.progress(done, total)
	}
}

func (n *Normalizer) metadata(id string, rec gjson.Result) listing.Metadata {
	m := listing.Metadata{
		Company:       n.company,
		PropertyID:    id,
		OperationType: listing.UnknownOperation,
		Title:         rec.Get("publication_title").String(),
		Address:       firstNonEmpty(rec, "real_address", "address"),
		Location:      rec.Get("location.full_location").String(),
		Type:          rec.Get("type.name").String(),
		Surface:       rec.Get("surface").String(),
		Rooms:         rec.Get("room_amount").String(),
		Bathrooms:     rec.Get("bathroom_amount").String(),
		Link:          rec.Get("public_url").String(),
		BranchPhone: rec.Get("branch.alternative_phone_country_code").String() +
			rec.Get("branch.alternative_phone_area").String() +
			rec.Get("branch.alternative_phone").String(),
		ProducerPhone: rec.Get("producer.phone").String(),
	}

	if op := rec.Get("operations.0"); op.Exists() {
		m.OperationType = strings.ToLower(op.Get("operation_type").String())
		if price := op.Get("prices.0"); price.Exists() {
			m.Price = listing.NewPrice(price.Get("price").String())
			m.Currency = price.Get("currency").String()
		}
	}
	return m
}

// description prefers the rich description and strips markup from it.
func description(rec gjson.Result) string {
	d := firstNonEmpty(rec, "rich_description", "description")
	if d == "" {
		return ""
	}
	d = htmlTag.ReplaceAllString(d, "")
	d = strings.ReplaceAll(d, "&nbsp;", " ")
	return strings.TrimSpace(d)
}

func firstNonEmpty(rec gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := rec.Get(p).String(); v != "" {
			return v
		}
	}
	return ""
}
