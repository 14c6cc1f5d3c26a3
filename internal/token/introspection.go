package token

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/authpipe/authpipe/internal/pipeline"
)

// IntrospectionAuthenticator validates tokens against a remote OAuth2
// introspection endpoint (RFC 7662). The endpoint's answer is authoritative:
// an inactive token maps to the expired failure reason, a transport failure
// leaves the token unverifiable.
type IntrospectionAuthenticator struct {
	// Endpoint is the introspection URL.
	Endpoint string

	// ClientID and ClientSecret authenticate this resource server to the
	// introspection endpoint via HTTP basic auth.
	ClientID     string
	ClientSecret string

	// Audience, when set, must appear among the token's audiences.
	Audience string

	// HTTPClient defaults to http.DefaultClient. Tests inject a recorded
	// transport here.
	HTTPClient *http.Client
}

var _ Authenticator = (*IntrospectionAuthenticator)(nil)

// introspectionResponse is the subset of RFC 7662 §2.2 this server reads.
type introspectionResponse struct {
	Active    bool   `json:"active"`
	Subject   string `json:"sub"`
	Scope     string `json:"scope"`
	ClientID  string `json:"client_id"`
	TokenType string `json:"token_type"`
	ExpiresAt int64  `json:"exp"`
	Audience  any    `json:"aud"` // string or array of strings per RFC 7662

	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	Birthdate   string `json:"birthdate"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
}

// Authenticate posts the token to the introspection endpoint and rebuilds a
// principal from the response.
func (a *IntrospectionAuthenticator) Authenticate(ctx context.Context, tok string) (*pipeline.Principal, error) {
	if tok == "" {
		return nil, &AuthFailure{Reason: FailureMissing}
	}

	form := url.Values{"token": {tok}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthFailure{Reason: FailureSignature, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(a.ClientID, a.ClientSecret)

	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &AuthFailure{Reason: FailureSignature, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthFailure{Reason: FailureSignature, Detail: "introspection endpoint returned " + resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &AuthFailure{Reason: FailureSignature, Detail: err.Error()}
	}

	var ir introspectionResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return nil, &AuthFailure{Reason: FailureMalformed, Detail: "unparsable introspection response"}
	}

	if !ir.Active {
		return nil, &AuthFailure{Reason: FailureExpired, Detail: "token reported inactive"}
	}

	audiences := audienceList(ir.Audience)
	if a.Audience != "" && !slices.Contains(audiences, a.Audience) {
		return nil, &AuthFailure{Reason: FailureAudience}
	}

	p := &pipeline.Principal{
		Subject:   ir.Subject,
		TokenType: ir.TokenType,
		Scopes:    strings.Fields(ir.Scope),
		Audiences: audiences,
		Claims:    make(pipeline.Params),
	}
	if ir.ClientID != "" {
		p.Presenters = []string{ir.ClientID}
	}
	if ir.ExpiresAt > 0 {
		p.ExpiresAt = time.Unix(ir.ExpiresAt, 0)
		if time.Now().After(p.ExpiresAt) {
			return nil, &AuthFailure{Reason: FailureExpired}
		}
	}

	for name, v := range map[string]string{
		"name":         ir.Name,
		"given_name":   ir.GivenName,
		"family_name":  ir.FamilyName,
		"birthdate":    ir.Birthdate,
		"email":        ir.Email,
		"phone_number": ir.PhoneNumber,
	} {
		if v != "" {
			p.Claims[name] = pipeline.StringParam(v)
		}
	}

	return p, nil
}

// audienceList normalizes the aud member, which RFC 7662 allows as either a
// single string or an array of strings.
func audienceList(aud any) []string {
	switch v := aud.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
