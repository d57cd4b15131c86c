package extract

import (
	"sort"
	"strings"
)

var textKeys = []string{"text", "body", "message"}

// Structured reads the Telnyx envelope: data.payload, or data itself when it has no payload object.
type Structured struct{}

func (Structured) Name() string { return "structured" }

func (Structured) Extract(body map[string]any) (Inbound, bool) {
	data, ok := body["data"].(map[string]any)
	if !ok {
		return Inbound{}, false
	}
	node := data
	if payload, ok := data["payload"].(map[string]any); ok {
		node = payload
	}
	return fieldsOf(node)
}

// Flat reads the same field names at the top level.
type Flat struct{}

func (Flat) Name() string { return "flat" }

func (Flat) Extract(body map[string]any) (Inbound, bool) {
	return fieldsOf(body)
}

func fieldsOf(node map[string]any) (Inbound, bool) {
	var in Inbound

	switch from := node["from"].(type) {
	case map[string]any:
		in.Phone, _ = from["phone_number"].(string)
	case string:
		in.Phone = from
	}

	for _, k := range textKeys {
		if s, ok := node[k].(string); ok && strings.TrimSpace(s) != "" {
			in.Text = s
			break
		}
	}

	if ts, ok := node["received_at"].(string); ok {
		in.ReceivedAt = ts
	}

	return in, in.Phone != "" && strings.TrimSpace(in.Text) != ""
}

// Recursive walks the whole document depth first. It is the last resort for
// payload shapes nobody anticipated.
type Recursive struct{}

func (Recursive) Name() string { return "recursive" }

func (Recursive) Extract(body map[string]any) (Inbound, bool) {
	var in Inbound
	walk(body, &in)
	return in, in.Phone != "" && in.Text != ""
}

func walk(v any, in *Inbound) {
	if in.Phone != "" && in.Text != "" && in.ReceivedAt != "" {
		return
	}

	switch node := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		// map order is random; sorting keeps the first match stable
		sort.Strings(keys)

		for _, k := range keys {
			child := node[k]
			if s, ok := child.(string); ok {
				visitString(k, s, in)
				continue
			}
			walk(child, in)
		}
	case []any:
		for _, child := range node {
			walk(child, in)
		}
	}
}

func visitString(key, s string, in *Inbound) {
	switch key {
	case "phone_number", "from":
		if in.Phone == "" && strings.HasPrefix(s, "+") {
			in.Phone = s
		}
	case "text", "body", "message":
		if in.Text == "" && strings.TrimSpace(s) != "" {
			in.Text = s
		}
	case "received_at":
		if in.ReceivedAt == "" {
			in.ReceivedAt = s
		}
	}
}
