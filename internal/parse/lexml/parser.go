// Package lexml converts LexML legal XML into a stream of RegulatoryUnits,
// one per Artigo. The parser is namespace-agnostic: every element is matched
// on its local name only, because LexML instances in the corpus vary in
// which namespace (if any) they declare, mirroring the original Python
// parser's wildcarded "//{*}Artigo" XPath selectors.
package lexml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"manifold/internal/domain"
	"manifold/internal/temporal"
)

// node is a generic XML tree, built once per document so we can walk
// ancestors and children by local name without fighting encoding/xml's
// struct-tag-driven unmarshalling (which cannot express "any namespace").
type node struct {
	Local    string
	Attrs    map[string]string
	Text     string
	Children []*node
	Parent   *node
}

func (n *node) find(local string) *node {
	for _, c := range n.Children {
		if c.Local == local {
			return c
		}
		if found := c.find(local); found != nil {
			return found
		}
	}
	return nil
}

func (n *node) findAll(local string) []*node {
	var out []*node
	var walk func(*node)
	walk = func(cur *node) {
		for _, c := range cur.Children {
			if c.Local == local {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// itertext concatenates all descendant text nodes in document order,
// mirroring lxml's element.itertext().
func (n *node) itertext() string {
	var b strings.Builder
	var walk func(*node)
	walk = func(cur *node) {
		b.WriteString(cur.Text)
		for _, c := range cur.Children {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func parseTree(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)
	root := &node{Local: "#root"}
	stack := []*node{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{Local: t.Name.Local, Attrs: map[string]string{}}
			for _, a := range t.Attr {
				n.Attrs[a.Name.Local] = a.Value
			}
			parent := stack[len(stack)-1]
			n.Parent = parent
			parent.Children = append(parent.Children, n)
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			cur := stack[len(stack)-1]
			cur.Text += string(t)
		}
	}
	return root, nil
}

// Metadata holds document-level facts extracted from the Identificacao URN.
type Metadata struct {
	URN             string
	Authority       string
	Kind            string
	PublicationDate *time.Time
	Number          string
}

// Parse reads a LexML XML document and returns the document metadata plus
// one RegulatoryUnit per Artigo element.
func Parse(r io.Reader, defaultEffectiveDays int) (*domain.Document, []domain.RegulatoryUnit, error) {
	root, err := parseTree(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parse lexml xml: %w", err)
	}

	meta := extractMetadata(root)
	doc := &domain.Document{
		ID:              meta.URN,
		Kind:            domain.DocumentKind(strings.ToLower(meta.Kind)),
		Number:          meta.Number,
		PublicationDate: meta.PublicationDate,
	}
	if doc.Kind == "" {
		doc.Kind = domain.KindOther
	}

	extractor := temporal.New(defaultEffectiveDays)
	var units []domain.RegulatoryUnit
	for _, art := range root.findAll("Artigo") {
		u, err := parseArticle(art, doc, meta, extractor)
		if err != nil {
			continue // malformed individual article: skip, do not fail the document
		}
		units = append(units, u)
	}
	return doc, units, nil
}

// extractMetadata parses the URN of the form
// urn:lex:br:{authority}:{kind}:{publication_date};{number}.
func extractMetadata(root *node) Metadata {
	var meta Metadata
	if ident := root.find("Identificacao"); ident != nil {
		meta.URN = ident.Attrs["URN"]
	}
	if meta.URN != "" {
		parts := strings.Split(meta.URN, ":")
		if len(parts) >= 6 {
			meta.Authority = parts[3]
			meta.Kind = parts[4]
			dateAndNum := strings.SplitN(parts[5], ";", 2)
			if d, err := time.Parse("2006-01-02", dateAndNum[0]); err == nil {
				meta.PublicationDate = &d
			}
			if len(dateAndNum) > 1 {
				meta.Number = dateAndNum[1]
			}
		}
	}
	if dateNode := root.find("Data"); dateNode != nil && meta.PublicationDate == nil {
		if d, err := time.Parse("2006-01-02", strings.TrimSpace(dateNode.Text)); err == nil {
			meta.PublicationDate = &d
		}
	}
	return meta
}

func parseArticle(art *node, doc *domain.Document, meta Metadata, extractor *temporal.Extractor) (domain.RegulatoryUnit, error) {
	articleID := art.Attrs["id"]
	rotulo := ""
	if r := art.find("Rotulo"); r != nil {
		rotulo = strings.TrimSpace(r.itertext())
	}

	var parts []string
	if caput := art.find("Caput"); caput != nil {
		if txt := caput.itertext(); txt != "" {
			parts = append(parts, "Caput: "+txt)
		}
	}
	for _, para := range art.findAll("Paragrafo") {
		label := "Parágrafo"
		if r := para.find("Rotulo"); r != nil {
			if txt := strings.TrimSpace(r.itertext()); txt != "" {
				label = txt
			}
		}
		if txt := para.itertext(); txt != "" {
			parts = append(parts, label+": "+txt)
		}
	}
	fullText := strings.Join(parts, "\n\n")
	if rotulo != "" {
		fullText = rotulo + "\n\n" + fullText
	}

	ctx := ancestorLabels(art)
	ctx = append(ctx, rotulo)

	number := meta.Number
	if number == "" {
		number = "unknown"
	}
	regulationID := fmt.Sprintf("%s-%s", number, articleID)

	result := extractor.Extract(fullText, meta.PublicationDate)
	if result.Warning != nil {
		log.Warn().Err(result.Warning).Str("article_id", articleID).Str("urn", meta.URN).Msg("could not resolve effective date")
	}

	status := domain.StatusActive
	if result.IsRevoked {
		status = domain.StatusSuperseded
	}

	version := ""
	if meta.PublicationDate != nil {
		version = meta.PublicationDate.Format("2006-01-02")
	}

	u := domain.RegulatoryUnit{
		RegulationID:  regulationID,
		Context:       ctx,
		Label:         rotulo,
		Text:          fullText,
		Doc:           doc,
		EffectiveDate: result.EffectiveDate,
		ExpiryDate:    result.ExpiryDate,
		IsRevoked:     result.IsRevoked,
		Amends:        result.Amends,
		Version:       version,
		Metadata: map[string]string{
			domain.MetaSource: "lexml",
			domain.MetaURN:    meta.URN,
			domain.MetaDocKind: string(doc.Kind),
			"article_id":       articleID,
			"status":           string(status),
		},
	}
	return u, nil
}

// ancestorLabels walks up from an Artigo collecting TÍTULO/CAPÍTULO/SEÇÃO/
// SUBSEÇÃO labels in outermost-first order.
var structuralAncestors = map[string]bool{
	"Titulo": true, "TituloLivro": true,
	"Capitulo": true, "Secao": true, "Subsecao": true,
}

func ancestorLabels(n *node) []string {
	var chain []*node
	for p := n.Parent; p != nil; p = p.Parent {
		if structuralAncestors[p.Local] {
			chain = append(chain, p)
		}
	}
	// chain is innermost-first (walked up); reverse to outermost-first.
	labels := make([]string, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		if r := chain[i].find("Rotulo"); r != nil {
			if txt := strings.TrimSpace(r.itertext()); txt != "" {
				labels = append(labels, txt)
				continue
			}
		}
		labels = append(labels, chain[i].Local)
	}
	return labels
}
