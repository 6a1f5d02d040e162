package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"
)

// RewriteConfig takes the raw upstream voice config document and produces the
// streaming variant: "streaming" set true and "key" set to derivedName. The
// rewrite works on the raw bytes, so field order and every unrelated field
// survive verbatim; the result is re-indented with two spaces and ends with a
// single newline.
func RewriteConfig(raw []byte, derivedName string) ([]byte, error) {
	out, err := jsonparser.Set(raw, []byte("true"), "streaming")
	if err != nil {
		return nil, fmt.Errorf("set streaming flag: %w", err)
	}

	key, err := json.Marshal(derivedName)
	if err != nil {
		return nil, fmt.Errorf("encode derived key: %w", err)
	}
	out, err = jsonparser.Set(out, key, "key")
	if err != nil {
		return nil, fmt.Errorf("set key: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, out, "", "  "); err != nil {
		return nil, fmt.Errorf("indent config: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
