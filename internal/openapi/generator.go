package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// RPCPaths lists the route of every lookup RPC, canonical path first.
var RPCPaths = map[string][]string{
	"lookup_account":     {"/lookup_account", "/lookup_account.php"},
	"login_token_lookup": {"/login_token_lookup", "/login_token_lookup.php"},
}

// GenerateRPCSpec builds an OpenAPI 3.1 description of the account lookup
// RPCs. Both RPCs accept their parameters as a query string (GET) or an
// urlencoded form (POST) and always reply 200 with an XML document.
func GenerateRPCSpec(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "acctd RPC",
			Description: "Account resolution and credential verification RPCs.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{
		"AccountOut":      &openapi3.SchemaRef{Value: accountOutSchema()},
		"LoginTokenReply": &openapi3.SchemaRef{Value: loginTokenReplySchema()},
		"Error":           &openapi3.SchemaRef{Value: errorSchema()},
	}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	lookupParams := openapi3.Parameters{
		param("email_addr", "Account email address. Required unless directory_auth is set.", false),
		param("passwd_hash", "Password hash. Without it the call only probes for the account.", false),
		param("directory_auth", "Set to 1 to authenticate against the directory instead (alias ldap_auth).", false),
		param("directory_uid", "Directory user id (alias ldap_uid).", false),
		param("password", "Directory password (alias passwd).", false),
	}
	for _, p := range RPCPaths["lookup_account"] {
		doc.Paths.Set(p, rpcPathItem(
			"lookup_account",
			"Resolve an account and verify its credential",
			lookupParams,
			"#/components/schemas/AccountOut",
		))
	}

	tokenParams := openapi3.Parameters{
		param("user_id", "Account id.", true),
		param("token", "Login token issued to the account.", true),
	}
	for _, p := range RPCPaths["login_token_lookup"] {
		doc.Paths.Set(p, rpcPathItem(
			"login_token_lookup",
			"Exchange a login token for the weak authenticator",
			tokenParams,
			"#/components/schemas/LoginTokenReply",
		))
	}

	return doc
}

func param(name, description string, required bool) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter(name).
			WithDescription(description).
			WithRequired(required).
			WithSchema(openapi3.NewStringSchema()),
	}
}

func rpcPathItem(rpc, summary string, params openapi3.Parameters, replyRef string) *openapi3.PathItem {
	get := &openapi3.Operation{
		Tags:        []string{"rpc"},
		Summary:     summary,
		OperationID: rpc,
		Parameters:  params,
		Responses:   newXMLResponses(replyRef),
	}

	formProps := openapi3.Schemas{}
	var required []string
	for _, p := range params {
		formProps[p.Value.Name] = openapi3.NewSchemaRef("", openapi3.NewStringSchema())
		if p.Value.Required {
			required = append(required, p.Value.Name)
		}
	}
	post := &openapi3.Operation{
		Tags:        []string{"rpc"},
		Summary:     summary,
		OperationID: rpc + "_form",
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Content: openapi3.Content{
					"application/x-www-form-urlencoded": &openapi3.MediaType{
						Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{
							Type:       &openapi3.Types{"object"},
							Properties: formProps,
							Required:   required,
						}},
					},
				},
			},
		},
		Responses: newXMLResponses(replyRef),
	}

	return &openapi3.PathItem{Get: get, Post: post}
}

// newXMLResponses describes the single 200 response of an RPC: either the
// reply document or an <error> document.
func newXMLResponses(replyRef string) *openapi3.Responses {
	responses := openapi3.NewResponses()

	desc := "Reply document, or an error document carrying error_num and error_msg"
	responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content: openapi3.Content{
				"text/xml": &openapi3.MediaType{
					Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{
						OneOf: openapi3.SchemaRefs{
							openapi3.NewSchemaRef(replyRef, nil),
							openapi3.NewSchemaRef("#/components/schemas/Error", nil),
						},
					}},
				},
			},
		},
	})
	return responses
}

func accountOutSchema() *openapi3.Schema {
	return &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		XML:  &openapi3.XML{Name: "account_out"},
		Properties: openapi3.Schemas{
			"success":       &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}, Description: "Present on an existence probe"}},
			"id":            &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
			"authenticator": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
		},
	}
}

func loginTokenReplySchema() *openapi3.Schema {
	return &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		XML:      &openapi3.XML{Name: "login_token_reply"},
		Required: []string{"weak_auth", "user_name"},
		Properties: openapi3.Schemas{
			"weak_auth": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			"user_name": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
		},
	}
}

func errorSchema() *openapi3.Schema {
	return &openapi3.Schema{
		Type:     &openapi3.Types{"object"},
		XML:      &openapi3.XML{Name: "error"},
		Required: []string{"error_num", "error_msg"},
		Properties: openapi3.Schemas{
			"error_num": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
			"error_msg": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
		},
	}
}
