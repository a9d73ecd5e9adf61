package snapshot

import (
	"encoding/gob"
	"io"
)

func gobEncoder(w io.Writer, v interface{}) error { return gob.NewEncoder(w).Encode(v) }
func gobDecoder(r io.Reader, v interface{}) error { return gob.NewDecoder(r).Decode(v) }
