package pipeline

import (
	"encoding/json"
	"testing"
)

func TestComposeResponse_CustomResponseWins(t *testing.T) {
	txn := NewTransaction(OperationUserinfo)
	txn.Response.Set("name", StringParam("Pierre de la Vega"))
	txn.Response.Set("sub", StringParam("bob"))
	txn.SetCustomResponse(Params{"name": StringParam("Bob le Bricoleur")})

	out := ComposeResponse(txn)
	if got := out.Get("name").String(); got != "Bob le Bricoleur" {
		t.Errorf("expected custom response to win, got %q", got)
	}
	if got := out.Get("sub").String(); got != "bob" {
		t.Errorf("untouched parameter must survive, got %q", got)
	}
}

func TestComposeResponse_AbsentValuesAreOmitted(t *testing.T) {
	txn := NewTransaction(OperationUserinfo)
	txn.Response.Set("sub", StringParam("bob"))
	txn.Response.Set("email", Param{})
	txn.SetCustomResponse(Params{"name": Param{}})

	out := ComposeResponse(txn)
	if _, ok := out["email"]; ok {
		t.Error("absent parameter must be omitted")
	}
	if _, ok := out["name"]; ok {
		t.Error("a zero custom entry removes the parameter")
	}

	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"sub":"bob"}` {
		t.Errorf("unexpected wire form: %s", raw)
	}
}

func TestComposeRejection(t *testing.T) {
	out := ComposeRejection(Rejection{Code: ErrorInvalidToken, Description: "The specified token is invalid."})
	if got := out.Get("error").String(); got != ErrorInvalidToken {
		t.Errorf("error: got %q", got)
	}
	if got := out.Get("error_description").String(); got != "The specified token is invalid." {
		t.Errorf("error_description: got %q", got)
	}
	if _, ok := out["error_uri"]; ok {
		t.Error("empty uri must be omitted")
	}
}

func TestParam_JSONShapes(t *testing.T) {
	out := Params{
		"aud":   ListParam("client-1", "client-2"),
		"scope": StringParam("openid profile"),
	}
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"aud":["client-1","client-2"],"scope":"openid profile"}`
	if string(raw) != want {
		t.Errorf("expected %s, got %s", want, raw)
	}
}

func TestComposeResponse_Idempotent(t *testing.T) {
	build := func() []byte {
		txn := NewTransaction(OperationUserinfo)
		txn.Response.Set("iss", StringParam("https://auth.example.com"))
		txn.Response.Set("sub", StringParam("bob"))
		txn.Response.Set("aud", ListParam("api-1", "api-2"))
		raw, err := json.Marshal(ComposeResponse(txn))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return raw
	}

	first, second := build(), build()
	if string(first) != string(second) {
		t.Errorf("same inputs must yield byte-identical responses:\n%s\n%s", first, second)
	}
}
