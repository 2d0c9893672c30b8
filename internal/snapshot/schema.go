package snapshot

import (
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

// schemaSource is the CUE schema every inbound payload must satisfy before
// the engine touches the graph. Rejecting malformed payloads up front keeps
// the failure local to the delivery: nothing is half-applied.
const schemaSource = `
#Instance: {
	id!: string & !=""
	attributes?: {[string]: string}
}

#Service: {
	name!: string & !=""
	depends_on?: string
	instances?: [...#Instance]
}

#Snapshot: {
	sequence?: int & >=0
	services!: [...#Service]
}
`

// SchemaError reports a payload that failed CUE validation.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("snapshot schema: %s", e.Message)
}

var (
	schemaOnce  sync.Once
	schemaValue cue.Value
)

// compiledSchema compiles the embedded schema once per process. The schema
// is a compile-time constant; a failure here is a programming error.
func compiledSchema() cue.Value {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaSource)
		if err := v.Err(); err != nil {
			panic(fmt.Sprintf("snapshot: embedded schema does not compile: %v", err))
		}
		schemaValue = v.LookupPath(cue.ParsePath("#Snapshot"))
	})
	return schemaValue
}

// ValidateBytes checks a raw JSON payload against the snapshot schema
// without decoding it into a Snapshot. Returns a *SchemaError on violation.
func ValidateBytes(data []byte) error {
	schema := compiledSchema()

	expr, err := cuejson.Extract("snapshot.json", data)
	if err != nil {
		return &SchemaError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	value := schema.Context().BuildExpr(expr)
	if err := value.Err(); err != nil {
		return &SchemaError{Message: cueerrors.Details(err, nil)}
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{Message: cueerrors.Details(err, nil)}
	}
	return nil
}

// Decode validates, parses, and normalizes one wire payload. This is the
// only entry point consumers should use for inbound bytes.
func Decode(data []byte) (*Snapshot, error) {
	if err := ValidateBytes(data); err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Encode serializes a snapshot for the dispatch channel. The payload is
// canonical so identical registry states produce identical messages.
func Encode(s *Snapshot) ([]byte, error) {
	return MarshalCanonical(s)
}
