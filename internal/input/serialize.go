package input

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ansible-policy/gatekeeper/internal/errs"
)

// reservedKey is the key under which the whole PolicyInput is nested
// alongside the focal entity's own fields (§4.8: "an object whose keys
// are the focal entity's fields plus a reserved key carrying the
// entire PolicyInput for downstream helpers").
const reservedKey = "__policy_input__"

// ToJSON serializes pi per §4.8's to_json contract: the focal entity's
// own fields at the top level, plus the reserved key carrying the
// entire PolicyInput. sjson builds the object incrementally so the
// focal entity's fields are not required to be a struct sjson already
// knows how to merge with — it starts from the entity's own JSON and
// sets one extra key into it.
func (pi *PolicyInput) ToJSON() ([]byte, error) {
	objectJSON, err := json.Marshal(pi.Object)
	if err != nil {
		return nil, errs.New(errs.KindSchema, string(pi.Kind), err)
	}

	wholeJSON, err := json.Marshal(pi)
	if err != nil {
		return nil, errs.New(errs.KindSchema, string(pi.Kind), err)
	}

	out, err := sjson.SetRawBytes(objectJSON, reservedKey, wholeJSON)
	if err != nil {
		return nil, errs.New(errs.KindSchema, string(pi.Kind), err)
	}
	return out, nil
}

// QueryPath resolves a dotted/bracketed identifier path (e.g.
// `input.a.b[0]`) against a serialized PolicyInput for diagnostics and
// tests, without re-decoding into Go structures.
func QueryPath(serialized []byte, path string) gjson.Result {
	return gjson.GetBytes(serialized, path)
}
