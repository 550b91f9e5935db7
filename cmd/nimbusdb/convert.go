package main

import (
	"bytes"
	"encoding/json"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/pkg/errors"

	"github.com/nimbusdb/nimbusdb/internal/value"
)

// jsonToValue accepts a MongoDB extended-JSON document (plain JSON works too,
// since extended JSON is a superset) and turns it into a rooted object Value
// by round-tripping through BSON.
func jsonToValue(raw []byte) (value.Value, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &d); err != nil {
		return value.Value{}, errors.Wrap(err, "parsing json document")
	}
	encoded, err := bson.Marshal(d)
	if err != nil {
		return value.Value{}, errors.Wrap(err, "re-encoding document")
	}
	return value.Decode(encoded)
}

// valueToJSON renders doc as indented extended JSON for terminal output.
func valueToJSON(doc value.Value) (string, error) {
	raw, err := value.Encode(doc)
	if err != nil {
		return "", err
	}
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return "", errors.Wrap(err, "decoding document for display")
	}
	compact, err := bson.MarshalExtJSON(d, false, false)
	if err != nil {
		return "", errors.Wrap(err, "rendering document as json")
	}
	var indented bytes.Buffer
	if err := json.Indent(&indented, compact, "", "  "); err != nil {
		return "", errors.Wrap(err, "indenting json output")
	}
	return indented.String(), nil
}
