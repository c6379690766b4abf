// Package openapi builds an OpenAPI 3 document from registered routes and
// serves it together with Swagger UI.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/nimburion/movies/pkg/server/router"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Marshal and WriteSpec.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// EndpointAnnotations customizes the generated operation for one route.
type EndpointAnnotations struct {
	Summary     string
	Description string
	Tags        []string
	OperationID string
	// QueryParams lists documented query parameters.
	QueryParams []Param
	// RequestSchema names a component schema used as the JSON request body.
	RequestSchema string
	// Responses replaces the default response set.
	Responses []Response
}

// Param is a documented query parameter.
type Param struct {
	Name        string
	Type        string // string, integer, number
	Description string
}

// Response is a documented response. Schema names a component schema; Array
// wraps it in an array. PlainText documents a text/plain body.
type Response struct {
	Status      int
	Description string
	Schema      string
	Array       bool
	PlainText   bool
}

// Annotations maps "METHOD /path" keys (router path syntax) to annotations.
type Annotations map[string]EndpointAnnotations

// Key builds an Annotations key.
func Key(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Info is the document metadata.
type Info struct {
	Title       string
	Version     string
	Description string
}

// BuildSpec builds an OpenAPI document for routes. Routes without annotations
// get a generated summary and a default response.
func BuildSpec(info Info, routes []router.Route, annotations Annotations, schemas openapi3.Schemas) *openapi3.T {
	title := strings.TrimSpace(info.Title)
	if title == "" {
		title = "API"
	}
	version := strings.TrimSpace(info.Version)
	if version == "" {
		version = "0.0.0"
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       title,
			Version:     version,
			Description: info.Description,
		},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}
	for name, schema := range schemas {
		doc.Components.Schemas[name] = schema
	}

	for _, route := range routes {
		path := toOpenAPIPath(route.Path)
		if path == "" {
			continue
		}
		ann := annotations[Key(route.Method, route.Path)]
		doc.AddOperation(path, route.Method, buildOperation(route.Method, path, ann, doc.Components.Schemas))
	}
	return doc
}

func buildOperation(method, path string, ann EndpointAnnotations, schemas openapi3.Schemas) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = ann.OperationID
	if op.OperationID == "" {
		op.OperationID = operationID(method, path)
	}
	op.Summary = ann.Summary
	if op.Summary == "" {
		op.Summary = fmt.Sprintf("%s %s", method, path)
	}
	op.Description = ann.Description
	op.Tags = ann.Tags
	if len(op.Tags) == 0 {
		op.Tags = defaultTags(path)
	}

	for _, name := range pathParams(path) {
		op.AddParameter(openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema()))
	}
	for _, q := range ann.QueryParams {
		p := openapi3.NewQueryParameter(q.Name).WithSchema(paramSchema(q.Type))
		p.Description = q.Description
		op.AddParameter(p)
	}

	if ann.RequestSchema != "" {
		body := openapi3.NewRequestBody().
			WithRequired(true).
			WithJSONSchemaRef(componentRef(schemas, ann.RequestSchema))
		op.RequestBody = &openapi3.RequestBodyRef{Value: body}
	}

	responses := ann.Responses
	if len(responses) == 0 {
		status := defaultStatus(method)
		responses = []Response{{Status: status}}
	}
	opts := make([]openapi3.NewResponsesOption, 0, len(responses))
	for _, r := range responses {
		opts = append(opts, openapi3.WithStatus(r.Status, &openapi3.ResponseRef{Value: buildResponse(r, schemas)}))
	}
	op.Responses = openapi3.NewResponses(opts...)
	return op
}

func buildResponse(r Response, schemas openapi3.Schemas) *openapi3.Response {
	description := r.Description
	if description == "" {
		description = http.StatusText(r.Status)
	}
	resp := openapi3.NewResponse().WithDescription(description)
	switch {
	case r.PlainText:
		resp.WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"text/plain"}))
	case r.Schema != "" && r.Array:
		array := openapi3.NewArraySchema()
		array.Items = componentRef(schemas, r.Schema)
		resp.WithJSONSchema(array)
	case r.Schema != "":
		resp.WithJSONSchemaRef(componentRef(schemas, r.Schema))
	}
	return resp
}

// componentRef points at a component schema. The referenced value is attached
// so the document validates without a loader pass.
func componentRef(schemas openapi3.Schemas, name string) *openapi3.SchemaRef {
	var value *openapi3.Schema
	if ref := schemas[name]; ref != nil {
		value = ref.Value
	}
	return openapi3.NewSchemaRef("#/components/schemas/"+name, value)
}

func paramSchema(typ string) *openapi3.Schema {
	switch typ {
	case "integer":
		return openapi3.NewIntegerSchema()
	case "number":
		return openapi3.NewFloat64Schema()
	default:
		return openapi3.NewStringSchema()
	}
}

// toOpenAPIPath converts /movies/:id to /movies/{id}.
func toOpenAPIPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

func pathParams(path string) []string {
	var params []string
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			params = append(params, seg[1:len(seg)-1])
		}
	}
	return params
}

func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, seg := range strings.Split(path, "/") {
		seg = strings.Trim(seg, "{}")
		if seg == "" {
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]))
		b.WriteString(seg[1:])
	}
	if b.Len() == len(method) {
		b.WriteString("Root")
	}
	return b.String()
}

func defaultTags(path string) []string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" && !strings.HasPrefix(seg, "{") {
			return []string{seg}
		}
	}
	return []string{"root"}
}

func defaultStatus(method string) int {
	if method == http.MethodPost {
		return http.StatusCreated
	}
	return http.StatusOK
}

// Marshal encodes doc as JSON or YAML. YAML keeps the JSON key order.
func Marshal(doc *openapi3.T, format string) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("openapi document is nil")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal openapi document: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, "":
		return data, nil
	case FormatYAML, "yml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("convert openapi document to yaml: %w", err)
		}
		blockStyle(&node)
		out, err := yaml.Marshal(&node)
		if err != nil {
			return nil, fmt.Errorf("marshal openapi yaml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported format %q (supported: json, yaml)", format)
	}
}

// blockStyle clears the flow style inherited from the JSON source.
func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle
	for _, child := range n.Content {
		blockStyle(child)
	}
}

// WriteSpec writes doc to path, choosing the format from the extension
// (.json, otherwise YAML).
func WriteSpec(path string, doc *openapi3.T) error {
	outputPath := strings.TrimSpace(path)
	if outputPath == "" {
		return fmt.Errorf("output path is required")
	}

	format := FormatYAML
	if strings.EqualFold(filepath.Ext(outputPath), ".json") {
		format = FormatJSON
	}
	data, err := Marshal(doc, format)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write openapi document: %w", err)
	}
	return nil
}
