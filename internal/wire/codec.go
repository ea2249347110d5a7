package wire

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

const (
	ContentTypeJSON = "application/json; charset=utf-8"
	ContentTypeCBOR = "application/cbor"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: cbor dec mode: %v", err))
	}
}

// WantsCBOR — клиент явно попросил application/cbor.
func WantsCBOR(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == ContentTypeCBOR {
			return true
		}
	}
	return false
}

// Write encodes v as CBOR or JSON depending on the request's Accept header.
func Write(w http.ResponseWriter, r *http.Request, status int, v any) {
	if r != nil && WantsCBOR(r) {
		b, err := encMode.Marshal(v)
		if err == nil {
			w.Header().Set("Content-Type", ContentTypeCBOR)
			w.WriteHeader(status)
			_, _ = w.Write(b)
			return
		}
		// не смогли в CBOR — отдаём JSON
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Unmarshal decodes a response body by its Content-Type.
func Unmarshal(contentType string, data []byte, v any) error {
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt == ContentTypeCBOR {
		return decMode.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

