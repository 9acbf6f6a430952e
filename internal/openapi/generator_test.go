package openapi

import (
	"encoding/json"
	"testing"
)

func TestGenerateRPCSpec(t *testing.T) {
	doc := GenerateRPCSpec("http://localhost:8080")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("got openapi %q, want %q", doc.OpenAPI, "3.1.0")
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8080" {
		t.Errorf("unexpected servers: %+v", doc.Servers)
	}

	for _, paths := range RPCPaths {
		for _, p := range paths {
			item := doc.Paths.Value(p)
			if item == nil {
				t.Errorf("missing path %s", p)
				continue
			}
			if item.Get == nil || item.Post == nil {
				t.Errorf("%s: expected GET and POST operations", p)
			}
		}
	}

	for _, name := range []string{"AccountOut", "LoginTokenReply", "Error"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("missing component schema %s", name)
		}
	}
}

func TestTokenLookupParametersRequired(t *testing.T) {
	doc := GenerateRPCSpec("")
	op := doc.Paths.Value("/login_token_lookup").Get

	for _, name := range []string{"user_id", "token"} {
		p := op.Parameters.GetByInAndName("query", name)
		if p == nil {
			t.Errorf("missing parameter %s", name)
			continue
		}
		if !p.Required {
			t.Errorf("parameter %s: expected required", name)
		}
	}
}

func TestLookupAccountEmailOptional(t *testing.T) {
	doc := GenerateRPCSpec("")
	op := doc.Paths.Value("/lookup_account").Get

	p := op.Parameters.GetByInAndName("query", "email_addr")
	if p == nil {
		t.Fatal("missing email_addr parameter")
	}
	if p.Required {
		t.Error("email_addr is not required in directory mode")
	}
}

func TestSpecMarshalsToJSON(t *testing.T) {
	doc := GenerateRPCSpec("http://localhost:8080")

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	paths, ok := out["paths"].(map[string]interface{})
	if !ok {
		t.Fatal("expected paths object")
	}
	if _, ok := paths["/lookup_account.php"]; !ok {
		t.Error("expected legacy .php path in output")
	}
}
