package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
)

// Param is one named argument of an XML command. Order is preserved on the
// wire.
type Param struct {
	Name  string
	Value string
}

// Command is the XML-RPC style call the portal's dispatchers expect.
type Command struct {
	Subsystem string
	Action    string
	Params    []Param
}

// Envelope renders c as the value of the "command" form field.
func (c Command) Envelope() string {
	var b strings.Builder
	b.WriteString("<request><command>")
	b.WriteString("<subsystem>" + c.Subsystem + "</subsystem>")
	b.WriteString("<action>" + c.Action + "</action>")
	b.WriteString("<params>")
	for _, p := range c.Params {
		b.WriteString("<param name=" + quoteAttr(p.Name) + "><![CDATA[" + p.Value + "]]></param>")
	}
	b.WriteString("</params>")
	b.WriteString("</command></request>")
	return b.String()
}

// quoteAttr escapes value and wraps it in whichever quote it does not
// contain, falling back to double quotes with &quot;.
func quoteAttr(value string) string {
	value = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\n", "&#10;",
		"\r", "&#13;",
		"\t", "&#9;",
	).Replace(value)

	if !strings.Contains(value, `"`) {
		return `"` + value + `"`
	}
	if !strings.Contains(value, "'") {
		return "'" + value + "'"
	}
	return `"` + strings.ReplaceAll(value, `"`, "&quot;") + `"`
}

// Element is an XML element turned into a map: leaves become their text,
// nested elements become Elements and repeated sibling tags become a []any.
type Element map[string]any

func (e Element) Text(key string) string {
	s, _ := e[key].(string)
	return strings.TrimSpace(s)
}

func (e Element) Int(key string) int {
	n, _ := strconv.Atoi(e.Text(key))
	return n
}

func (e Element) Float(key string) float64 {
	f, _ := strconv.ParseFloat(e.Text(key), 64)
	return f
}

func (e Element) Bool(key string) bool {
	switch strings.ToLower(e.Text(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (e Element) Time(key string) time.Time {
	return parseTime(e.Text(key))
}

func (e Element) Child(key string) Element {
	child, _ := e[key].(Element)
	return child
}

// List returns the value under key as a list, wrapping a single value and
// mapping an empty or missing one to nil.
func (e Element) List(key string) []any {
	switch v := e[key].(type) {
	case nil:
		return nil
	case []any:
		return v
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []any{v}
	default:
		return []any{v}
	}
}

func (e Element) Strings(key string) []string {
	var out []string
	for _, item := range e.List(key) {
		if s, ok := item.(string); ok {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// Require fails when any of keys is absent.
func (e Element) Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if _, ok := e[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// unwrapList replaces e[key], shaped like <key><item/><item/></key>, with the
// plain list of items.
func (e Element) unwrapList(key, item string) {
	if inner, ok := e[key].(Element); ok {
		e[key] = inner.List(item)
		return
	}
	e[key] = e.List(key)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func toElement(n *xmlquery.Node) Element {
	el := Element{}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}

		var value any
		if hasElementChildren(child) {
			value = toElement(child)
		} else {
			value = child.InnerText()
		}

		switch existing := el[child.Data].(type) {
		case nil:
			el[child.Data] = value
		case []any:
			el[child.Data] = append(existing, value)
		default:
			el[child.Data] = []any{existing, value}
		}
	}
	return el
}

func hasElementChildren(n *xmlquery.Node) bool {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return true
		}
	}
	return false
}

// ParseElements returns every node of body matching xpath as an Element.
func ParseElements(body []byte, xpath string) ([]Element, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParsingError{What: "xml response", Err: err}
	}

	nodes, err := xmlquery.QueryAll(doc, xpath)
	if err != nil {
		return nil, &ParsingError{What: "xpath " + xpath, Err: err}
	}

	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, toElement(n))
	}
	return elements, nil
}

// Endpoint describes one XML dispatcher call and how to turn the matching
// nodes of its response into records.
type Endpoint[T any] struct {
	Path      string
	Subsystem string
	Action    string
	Params    []Param
	XPath     string
	// New builds a record from a matched node.
	New func(Element) (T, error)
	// PostProcess, if set, may reshape a node before New sees it.
	PostProcess func(Element) error
	Cache       CachePolicy
}

func (ep Endpoint[T]) Command() Command {
	return Command{Subsystem: ep.Subsystem, Action: ep.Action, Params: ep.Params}
}

func (ep Endpoint[T]) name() string {
	return ep.Subsystem + "/" + ep.Action
}

func (ep Endpoint[T]) cacheKey(now time.Time) (string, bool) {
	if ep.Cache == nil {
		return "", false
	}
	key, ok := ep.Cache.Key(now)
	if !ok {
		return "", false
	}
	return ep.Path + "|" + ep.name() + "|" + key, true
}

// Fetch posts ep's command and returns one record per matched node, in
// document order. Cacheable endpoints are served from the session cache.
func Fetch[T any](ctx context.Context, s *Session, ep Endpoint[T]) ([]T, error) {
	if s == nil || s.creds == nil {
		return nil, fmt.Errorf("%w: session has no credentials, create it with NewSession", ErrConfiguration)
	}
	if ep.New == nil {
		return nil, fmt.Errorf("%w: endpoint %s has no record constructor", ErrConfiguration, ep.name())
	}

	key, cacheable := ep.cacheKey(s.now())

	var body []byte
	fresh := true
	if cacheable {
		cached, err := s.cache.Lookup(key)
		switch {
		case err == nil:
			s.logger.Debug("serving from cache", "endpoint", ep.name(), "key", key)
			body, fresh = cached, false
		case !errors.Is(err, ErrCacheMiss):
			return nil, err
		}
	}

	if fresh {
		resp, err := s.Post(ctx, ep.Path, &RequestOptions{
			Form:   url.Values{"command": {ep.Command().Envelope()}},
			Header: xhrHeader(),
		})
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, newDownloadError(resp)
		}
		body = resp.Body
	}

	records, err := buildRecords(body, ep)
	if err != nil {
		return nil, err
	}

	if fresh && cacheable {
		s.cache.Store(key, body)
	}
	return records, nil
}

func buildRecords[T any](body []byte, ep Endpoint[T]) ([]T, error) {
	elements, err := ParseElements(body, ep.XPath)
	if err != nil {
		return nil, err
	}

	records := make([]T, 0, len(elements))
	for i, el := range elements {
		if ep.PostProcess != nil {
			if err := ep.PostProcess(el); err != nil {
				return nil, &ParsingError{What: fmt.Sprintf("%s element %d", ep.name(), i), Err: err}
			}
		}
		rec, err := ep.New(el)
		if err != nil {
			return nil, &ParsingError{What: fmt.Sprintf("%s element %d", ep.name(), i), Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Get is Fetch for endpoints that answer with a single record.
func Get[T any](ctx context.Context, s *Session, ep Endpoint[T]) (T, error) {
	var zero T

	records, err := Fetch(ctx, s, ep)
	if err != nil {
		return zero, err
	}
	if len(records) == 0 {
		return zero, fmt.Errorf("%w: %s returned nothing at %s", ErrNoSuchElement, ep.name(), ep.XPath)
	}
	return records[0], nil
}
