package pipeline

// ComposeResponse builds the final wire parameters for a completed
// operation by layering, highest precedence first: entries stored under the
// custom response property, parameters written directly into the
// transaction's response map, and nothing else. Absent optional values are
// omitted, never emitted as null.
func ComposeResponse(txn *Transaction) Params {
	out := txn.Response.Clone()
	if custom, ok := txn.CustomResponse(); ok {
		for name, p := range custom {
			if p.IsZero() {
				delete(out, name)
				continue
			}
			out[name] = p
		}
	}
	for name, p := range out {
		if p.IsZero() {
			delete(out, name)
		}
	}
	return out
}

// ComposeRejection builds the protocol error object for a rejected
// operation. Description and URI pass through unchanged and are omitted
// when empty.
func ComposeRejection(r Rejection) Params {
	out := Params{"error": StringParam(r.Code)}
	if r.Description != "" {
		out["error_description"] = StringParam(r.Description)
	}
	if r.URI != "" {
		out["error_uri"] = StringParam(r.URI)
	}
	return out
}
