package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/detra/semsearch/internal/models"
)

// Loader reads a tabular catalog source into Product records.
//
// Row policy: a row without a sku is dropped with a warning. A price
// that does not parse leaves the product in place with the price unset;
// it is never coerced to zero. Only an unopenable source is an error.
type Loader struct {
	Path string
}

func New(path string) *Loader {
	return &Loader{Path: path}
}

// Load reads every row of the CSV source. Re-reading the same file
// yields the same products; duplicate skus within one file collapse to
// the last occurrence, matching the index's upsert semantics.
func (l *Loader) Load() ([]models.Product, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	return l.readAll(f)
}

func (l *Loader) readAll(r io.Reader) ([]models.Product, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := cols["sku"]; !ok {
		return nil, fmt.Errorf("catalog has no sku column")
	}

	var products []models.Product
	seen := make(map[string]int)
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Printf("warning: skipping malformed row %d: %v", line, err)
			continue
		}

		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		sku := field("sku")
		if sku == "" {
			sku = field("id")
		}
		if sku == "" {
			log.Printf("warning: dropping row %d: missing sku", line)
			continue
		}

		p := models.Product{
			SKU:         sku,
			Name:        field("name"),
			Description: stripMarkup(field("description")),
			Features:    parseFeatures(field("bullet_features")),
			Category:    parseStringList(field("category")),
			URI:         field("uri"),
			ReleaseDate: field("release_date"),
			InStock:     parseBool(field("in_stock")),
		}
		p.MSRP = parsePrice(line, "msrp", field("msrp"))
		p.FinalPrice = parsePrice(line, "final_price", field("final_price"))

		if idx, ok := seen[sku]; ok {
			products[idx] = p
			continue
		}
		seen[sku] = len(products)
		products = append(products, p)
	}

	return products, nil
}

// parsePrice returns nil for an empty or unparseable value; the caller
// keeps the product either way. Negative prices are treated the same
// as unparseable ones.
func parsePrice(line int, column, raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(raw, "$"), 64)
	if err != nil || v < 0 {
		log.Printf("warning: row %d: unparseable %s %q, leaving price unset", line, column, raw)
		return nil
	}
	return &v
}

// parseFeatures accepts either a JSON array of strings or an array of
// {"bullet_feature": "..."} objects, the two shapes the catalog export
// produces.
func parseFeatures(raw string) []string {
	if raw == "" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}

	var features []string
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				features = append(features, s)
			}
			continue
		}
		var obj struct {
			BulletFeature string `json:"bullet_feature"`
		}
		if err := json.Unmarshal(item, &obj); err == nil {
			if s = strings.TrimSpace(obj.BulletFeature); s != "" {
				features = append(features, s)
			}
		}
	}
	return features
}

func parseStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}

func parseBool(raw string) bool {
	switch strings.ToUpper(raw) {
	case "Y", "YES", "TRUE", "1":
		return true
	}
	return false
}

// stripMarkup reduces an HTML-bearing description to its text. Plain
// text passes through untouched.
func stripMarkup(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
