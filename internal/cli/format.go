package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/calvinalkan/cardstore/pkg/cardstore"
)

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", cardstore.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// parseID parses a positive record id.
func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError("%s %q is not a valid id", what, s)
	}

	return id, nil
}

// argID parses args[idx] as an id, failing when it is missing.
func argID(args []string, idx int, what string) (int64, error) {
	if idx >= len(args) {
		return 0, usageError("%s is required", what)
	}

	return parseID(what, args[idx])
}

// parseAttrs turns repeated key=value flags into attributes. Values that
// parse as a JSON scalar keep their type; anything else is a string.
func parseAttrs(pairs []string) (cardstore.Attributes, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	attrs := cardstore.Attributes{}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, usageError("attribute %q must be key=value", pair)
		}

		attrs[key] = parseScalar(raw)
	}

	return attrs, nil
}

func parseScalar(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any

	err := dec.Decode(&v)
	if err != nil || dec.More() {
		return raw
	}

	switch v.(type) {
	case nil, bool, json.Number, string:
		return v
	default:
		return raw
	}
}

func cardLine(c cardstore.Card) string {
	line := fmt.Sprintf("%-5d %-3d %-7s %s", c.ID, c.Order, c.Kind, c.Title)

	if c.LabelColor != "" {
		line += " [" + c.LabelColor + "]"
	}

	if c.Archived() {
		line += " (archived)"
	}

	return line
}

func formatAttrs(attrs cardstore.Attributes) string {
	if len(attrs) == 0 {
		return ""
	}

	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Sprint(map[string]any(attrs))
	}

	return string(data)
}

func parentString(id *int64) string {
	if id == nil {
		return "-"
	}

	return strconv.FormatInt(*id, 10)
}
