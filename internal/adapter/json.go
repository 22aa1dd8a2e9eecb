package adapter

import (
	"encoding/json"
)

// JSON is the codec seam for event payloads and tool configs. The indirection
// exists so tests can inject marshal failures.
//
//go:generate mockgen -source=json.go -destination=../mocks/json.go -package=mocks -mock_names=JSON=MockJSON
type JSON interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// RealJSON is the encoding/json-backed implementation
type RealJSON struct{}

// NewJSON returns the encoding/json-backed codec
func NewJSON() JSON {
	return &RealJSON{}
}

func (j *RealJSON) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (j *RealJSON) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
