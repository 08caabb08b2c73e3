package api

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// decodeRows collects every element named element, at any depth, into T.
// The ASMX responses wrap rows in DataSet/diffgram envelopes whose shape
// varies, so rows are matched by local name only.
func decodeRows[T any](data []byte, element string) ([]T, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var rows []T
	sawElement := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawElement = true
		if start.Name.Local != element {
			continue
		}

		var row T
		if err := dec.DecodeElement(&row, &start); err != nil {
			return nil, fmt.Errorf("malformed <%s> row: %w", element, err)
		}
		rows = append(rows, row)
	}

	if !sawElement {
		return nil, errors.New("malformed XML: no root element")
	}
	return rows, nil
}
